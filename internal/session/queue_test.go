package session

import (
	"testing"

	"github.com/gorilla/websocket"

	"psnrelay/internal/hub"
)

func TestEnqueueReportsFullQueue(t *testing.T) {
	s := newSession(nil, Options{QueueSize: 2}.withDefaults())
	if !s.Enqueue([]byte("a")) || !s.Enqueue([]byte("b")) {
		t.Fatal("expected queue to accept two frames")
	}
	if s.Enqueue([]byte("c")) {
		t.Fatal("expected full queue to refuse a frame")
	}
	s.Close(hub.CloseBackpressure)
	if !s.Enqueue([]byte("d")) {
		t.Fatal("closing sessions drop frames without reporting backpressure")
	}
	if s.frame.code != websocket.CloseTryAgainLater {
		t.Fatalf("expected 1013 close code, got %d", s.frame.code)
	}
}

func TestCloseKeepsFirstReason(t *testing.T) {
	s := newSession(nil, Options{}.withDefaults())
	s.Close(hub.CloseGoingAway)
	s.Close(hub.CloseError)
	if s.frame.code != websocket.CloseGoingAway {
		t.Fatalf("expected first close reason to win, got %d", s.frame.code)
	}
	if s.reasonText() != "server shutdown" {
		t.Fatalf("unexpected reason %q", s.reasonText())
	}
}

func TestFrameForMapsReasons(t *testing.T) {
	cases := map[hub.CloseReason]int{
		hub.CloseGoingAway:    websocket.CloseGoingAway,
		hub.CloseBackpressure: websocket.CloseTryAgainLater,
		hub.CloseError:        websocket.CloseInternalServerErr,
	}
	for reason, code := range cases {
		if got := frameFor(reason).code; got != code {
			t.Fatalf("%s: expected %d, got %d", reason, code, got)
		}
	}
}
