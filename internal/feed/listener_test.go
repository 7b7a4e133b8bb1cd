package feed_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"psnrelay/internal/feed"
	"psnrelay/internal/logging"
	"psnrelay/internal/osc"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

type update struct {
	id int
	p  scene.Point
}

type recordingApplier struct {
	mu      sync.Mutex
	updates []update
}

func (a *recordingApplier) ApplyFeedUpdate(id int, p scene.Point) (tracker.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == 666 {
		return tracker.State{}, errors.New("rejected")
	}
	a.updates = append(a.updates, update{id: id, p: p})
	return tracker.State{ID: id, X: p.X, Y: p.Y, Z: p.Z}, nil
}

func (a *recordingApplier) snapshot() []update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]update(nil), a.updates...)
}

func startListener(t *testing.T, applier feed.Applier) (*feed.Listener, net.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l, err := feed.Listen(ctx, feed.Options{Bind: "127.0.0.1:0", AddressPrefix: "/Tracker", ReusePort: true}, applier, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("Listen returned error: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancellation")
		}
	})

	conn, err := net.Dial("udp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return l, conn
}

func send(t *testing.T, conn net.Conn, packet []byte) {
	t.Helper()
	if _, err := conn.Write(packet); err != nil {
		t.Fatalf("send datagram: %v", err)
	}
}

func message(t *testing.T, address string, args ...any) []byte {
	t.Helper()
	packet, err := osc.AppendMessage(nil, address, args...)
	if err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	return packet
}

func waitForPackets(t *testing.T, l *feed.Listener, n uint64) feed.Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := l.Stats()
		if stats.Packets >= n {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("listener saw %d packets, want %d", stats.Packets, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListenerAppliesPositionsInOrder(t *testing.T) {
	applier := &recordingApplier{}
	l, conn := startListener(t, applier)

	send(t, conn, message(t, "/Tracker/0", float32(1), float32(2), float32(3)))
	send(t, conn, message(t, "/Tracker2", 4.5, int32(5), int64(6)))
	bundle := osc.AppendBundle(nil, osc.ImmediateTimetag,
		message(t, "/Tracker/1", 0.0, 0.0, 0.0),
		message(t, "/Tracker/1", 1.0, 1.0, 1.0),
	)
	send(t, conn, bundle)

	stats := waitForPackets(t, l, 3)
	if stats.Accepted != 4 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := applier.snapshot()
	want := []update{
		{0, scene.Point{X: 1, Y: 2, Z: 3}},
		{2, scene.Point{X: 4.5, Y: 5, Z: 6}},
		{1, scene.Point{}},
		{1, scene.Point{X: 1, Y: 1, Z: 1}},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("update %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestListenerDropsMalformedAndKeepsRunning(t *testing.T) {
	applier := &recordingApplier{}
	l, conn := startListener(t, applier)

	send(t, conn, []byte("not osc"))
	send(t, conn, message(t, "/Tracker/x", 1.0, 2.0, 3.0))
	send(t, conn, message(t, "/Tracker/1", 1.0, 2.0))
	send(t, conn, message(t, "/Tracker/1", "a", "b", "c"))
	send(t, conn, message(t, "/Tracker/666", 1.0, 2.0, 3.0))
	send(t, conn, message(t, "/Other/1", 1.0, 2.0, 3.0))
	send(t, conn, message(t, "/Tracker/4", 7.0, 8.0, 9.0))

	stats := waitForPackets(t, l, 7)
	if stats.Dropped != 5 || stats.Ignored != 1 || stats.Accepted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := applier.snapshot()
	if len(got) != 1 || got[0].id != 4 {
		t.Fatalf("only the valid update should apply, got %+v", got)
	}
}

func TestListenRejectsBusyPortWithoutReuse(t *testing.T) {
	first, err := feed.Listen(context.Background(), feed.Options{Bind: "127.0.0.1:0"}, &recordingApplier{}, logging.NewNop())
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	defer first.Close()
	if _, err := feed.Listen(context.Background(), feed.Options{Bind: first.Addr().String()}, &recordingApplier{}, logging.NewNop()); err == nil {
		t.Fatal("expected bind conflict without SO_REUSEPORT")
	}
}

func TestParseTrackerID(t *testing.T) {
	cases := []struct {
		address string
		want    int
		ok      bool
	}{
		{"/Tracker/0", 0, true},
		{"/Tracker/12", 12, true},
		{"/Tracker7", 7, true},
		{"/Tracker/group/3", 3, true},
		{"/Tracker", 0, false},
		{"/Tracker/", 0, false},
		{"/Tracker/abc", 0, false},
		{"/Tracker/-1", 0, false},
		{"/Other/1", 0, false},
	}
	for _, tc := range cases {
		id, err := feed.ParseTrackerID(tc.address, "/Tracker")
		if tc.ok {
			if err != nil || id != tc.want {
				t.Fatalf("%s: got %d, %v want %d", tc.address, id, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, feed.ErrBadAddress) {
			t.Fatalf("%s: expected ErrBadAddress, got %v", tc.address, err)
		}
	}
}
