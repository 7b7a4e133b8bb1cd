package hub_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"psnrelay/internal/hub"
	"psnrelay/internal/logging"
	"psnrelay/internal/tracker"
)

type fakeSession struct {
	id     string
	full   bool
	mu     sync.Mutex
	frames [][]byte
	closed []hub.CloseReason
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, msg)
	return true
}

func (s *fakeSession) Close(reason hub.CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, reason)
}

func (s *fakeSession) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSession) last(t *testing.T) []byte {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		t.Fatalf("session %s received no frames", s.id)
	}
	return s.frames[len(s.frames)-1]
}

func newHub(store *tracker.Store) *hub.Hub {
	return hub.New(store, logging.NewNop())
}

func decodeRoster(t *testing.T, payload []byte) []tracker.State {
	t.Helper()
	var roster []tracker.State
	if err := json.Unmarshal(payload, &roster); err != nil {
		t.Fatalf("decode roster %q: %v", payload, err)
	}
	return roster
}

func TestRegisterSendsInitialRoster(t *testing.T) {
	store := tracker.NewStore(tracker.Roster(3, 0.5, 0.5, 2)...)
	h := newHub(store)
	s := newFakeSession("a")
	if err := h.Register(s); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	roster := decodeRoster(t, s.last(t))
	if len(roster) != 3 || roster[2].ID != 2 || roster[2].Z != 2 {
		t.Fatalf("unexpected initial roster: %+v", roster)
	}
}

func TestBroadcastFullStateExcludesSender(t *testing.T) {
	store := tracker.NewStore(tracker.Roster(1, 0, 0, 0)...)
	h := newHub(store)
	sessions := make([]*fakeSession, 5)
	for i := range sessions {
		sessions[i] = newFakeSession(fmt.Sprintf("s%d", i))
		if err := h.Register(sessions[i]); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}

	sender := sessions[2]
	store.Upsert(tracker.State{ID: 0, X: 0.25, Y: 0.75, Z: 1})
	delivered := h.BroadcastFullState(sender)
	if delivered != len(sessions)-1 {
		t.Fatalf("expected %d deliveries, got %d", len(sessions)-1, delivered)
	}

	for _, s := range sessions {
		want := 2
		if s == sender {
			want = 1
		}
		if got := s.frameCount(); got != want {
			t.Fatalf("session %s: expected %d frames, got %d", s.id, want, got)
		}
		if s == sender {
			continue
		}
		roster := decodeRoster(t, s.last(t))
		if roster[0].X != 0.25 || roster[0].Y != 0.75 {
			t.Fatalf("session %s saw stale roster: %+v", s.id, roster)
		}
	}
}

func TestBroadcastEventReachesEverySession(t *testing.T) {
	h := newHub(tracker.NewStore(tracker.Roster(2, 0.5, 0.5, 2)...))
	sessions := []*fakeSession{newFakeSession("a"), newFakeSession("b"), newFakeSession("c")}
	for _, s := range sessions {
		if err := h.Register(s); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}
	if got := h.BroadcastEvent(hub.RefreshEvent); got != len(sessions) {
		t.Fatalf("expected %d deliveries, got %d", len(sessions), got)
	}
	for _, s := range sessions {
		if got := string(s.last(t)); got != `{"refresh":true}` {
			t.Fatalf("session %s: unexpected event payload %q", s.id, got)
		}
	}
}

func TestFullSessionIsEvictedWithoutAffectingOthers(t *testing.T) {
	h := newHub(tracker.NewStore())
	healthy := newFakeSession("healthy")
	stuck := newFakeSession("stuck")
	for _, s := range []*fakeSession{healthy, stuck} {
		if err := h.Register(s); err != nil {
			t.Fatalf("Register returned error: %v", err)
		}
	}
	stuck.mu.Lock()
	stuck.full = true
	stuck.mu.Unlock()

	if got := h.BroadcastFullState(nil); got != 1 {
		t.Fatalf("expected one delivery, got %d", got)
	}
	if h.Len() != 1 {
		t.Fatalf("expected stuck session to be removed, have %d sessions", h.Len())
	}
	if len(stuck.closed) != 1 || stuck.closed[0] != hub.CloseBackpressure {
		t.Fatalf("expected backpressure close, got %v", stuck.closed)
	}
	if healthy.frameCount() != 2 {
		t.Fatalf("healthy session should still receive frames, got %d", healthy.frameCount())
	}
	if stats := h.Stats(); stats.Evicted != 1 {
		t.Fatalf("expected one eviction, got %+v", stats)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := newHub(tracker.NewStore())
	s := newFakeSession("a")
	h.Unregister(s)
	if err := h.Register(s); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	h.Unregister(s)
	h.Unregister(s)
	if h.Len() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Len())
	}
}

func TestUnregisterIgnoresStaleSessionWithSameID(t *testing.T) {
	h := newHub(tracker.NewStore())
	old := newFakeSession("dup")
	replacement := newFakeSession("dup")
	if err := h.Register(old); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := h.Register(replacement); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	h.Unregister(old)
	if h.Len() != 1 {
		t.Fatalf("stale unregister removed the replacement session")
	}
}

func TestCloseAllUsesGoingAwayAndRejectsNewSessions(t *testing.T) {
	h := newHub(tracker.NewStore())
	a, b := newFakeSession("a"), newFakeSession("b")
	_ = h.Register(a)
	_ = h.Register(b)

	h.CloseAll(hub.CloseGoingAway)
	for _, s := range []*fakeSession{a, b} {
		if len(s.closed) != 1 || s.closed[0] != hub.CloseGoingAway {
			t.Fatalf("session %s: expected going-away close, got %v", s.id, s.closed)
		}
	}
	if err := h.Register(newFakeSession("late")); err != hub.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestConcurrentBroadcastsDeliverSameOrderToAllSessions(t *testing.T) {
	store := tracker.NewStore(tracker.Roster(1, 0, 0, 0)...)
	h := newHub(store)
	a, b := newFakeSession("a"), newFakeSession("b")
	_ = h.Register(a)
	_ = h.Register(b)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Upsert(tracker.State{ID: 0, X: float64(w*100 + i)})
				h.BroadcastFullState(nil)
			}
		}(w)
	}
	wg.Wait()

	a.mu.Lock()
	b.mu.Lock()
	defer a.mu.Unlock()
	defer b.mu.Unlock()
	if len(a.frames) != len(b.frames) {
		t.Fatalf("frame counts differ: %d vs %d", len(a.frames), len(b.frames))
	}
	for i := range a.frames {
		if string(a.frames[i]) != string(b.frames[i]) {
			t.Fatalf("frame %d differs between sessions: %s vs %s", i, a.frames[i], b.frames[i])
		}
	}
}
