// Package hub fans tracker roster updates out to connected UI sessions.
//
// Delivery is queue based: the hub snapshots the roster once per broadcast,
// marshals it once, and enqueues the same bytes on every recipient while
// holding its lock. Sessions drain their queues on their own goroutines, so a
// slow socket never stalls the hub or other sessions. A session that cannot
// accept a frame is evicted and closed.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"psnrelay/internal/logging"
	"psnrelay/internal/tracker"
)

// ErrClosed is returned when registering on a hub that has been shut down.
var ErrClosed = errors.New("hub closed")

// CloseReason tells a session why the hub is closing it.
type CloseReason int

const (
	// CloseGoingAway is used on process shutdown.
	CloseGoingAway CloseReason = iota
	// CloseBackpressure is used when the session queue overflowed.
	CloseBackpressure
	// CloseError is used after a transport failure.
	CloseError
)

func (r CloseReason) String() string {
	switch r {
	case CloseGoingAway:
		return "going_away"
	case CloseBackpressure:
		return "backpressure"
	case CloseError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is a connected client that accepts pre-encoded frames.
type Session interface {
	ID() string
	// Enqueue queues msg without blocking and reports whether it was accepted.
	Enqueue(msg []byte) bool
	Close(reason CloseReason)
}

// RosterSource supplies the tracker snapshot sent on each broadcast.
type RosterSource interface {
	All() []tracker.State
}

// Event is a lightweight signal that carries no roster payload.
type Event struct {
	Refresh bool `json:"refresh"`
}

// RefreshEvent asks clients to re-fetch state after a config-level change.
var RefreshEvent = Event{Refresh: true}

// Stats summarizes hub delivery counters.
type Stats struct {
	Sessions   int    `json:"sessions"`
	Broadcasts uint64 `json:"broadcasts"`
	Frames     uint64 `json:"frames"`
	Evicted    uint64 `json:"evicted"`
}

// Hub tracks registered sessions and owns fan-out.
type Hub struct {
	mu       sync.Mutex
	source   RosterSource
	sessions map[string]Session
	closed   bool
	logger   *slog.Logger

	broadcasts atomic.Uint64
	frames     atomic.Uint64
	evicted    atomic.Uint64
}

// New constructs a hub that reads rosters from source.
func New(source RosterSource, logger *slog.Logger) *Hub {
	return &Hub{
		source:   source,
		sessions: make(map[string]Session),
		logger:   logging.NewComponentLogger(logger, "hub"),
	}
}

// Register adds s and queues the current roster as its first frame.
func (h *Hub) Register(s Session) error {
	if s == nil {
		return errors.New("hub: nil session")
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.sessions[s.ID()] = s
	payload, err := h.rosterLocked()
	if err != nil {
		h.mu.Unlock()
		return err
	}
	evicted := h.deliverLocked(payload, []Session{s})
	count := len(h.sessions)
	h.mu.Unlock()

	h.closeEvicted(evicted)
	h.logger.Debug("session registered",
		logging.String(logging.FieldSessionID, s.ID()),
		logging.Int("sessions", count),
	)
	return nil
}

// Unregister removes s. Removing an unknown session is a no-op.
func (h *Hub) Unregister(s Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	removed := h.removeLocked(s)
	count := len(h.sessions)
	h.mu.Unlock()
	if removed {
		h.logger.Debug("session unregistered",
			logging.String(logging.FieldSessionID, s.ID()),
			logging.Int("sessions", count),
		)
	}
}

// BroadcastFullState sends the current roster to every session except
// exclude and returns the number of sessions that accepted the frame.
func (h *Hub) BroadcastFullState(exclude Session) int {
	h.mu.Lock()
	payload, err := h.rosterLocked()
	if err != nil {
		h.mu.Unlock()
		h.logger.Error("roster encode failed", logging.Error(err))
		return 0
	}
	targets := h.targetsLocked(exclude)
	evicted := h.deliverLocked(payload, targets)
	h.mu.Unlock()

	h.broadcasts.Add(1)
	h.closeEvicted(evicted)
	return len(targets) - len(evicted)
}

// BroadcastEvent sends evt to every registered session.
func (h *Hub) BroadcastEvent(evt Event) int {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("event encode failed", logging.Error(err))
		return 0
	}
	h.mu.Lock()
	targets := h.targetsLocked(nil)
	evicted := h.deliverLocked(payload, targets)
	h.mu.Unlock()

	h.broadcasts.Add(1)
	h.closeEvicted(evicted)
	return len(targets) - len(evicted)
}

// CloseAll closes every session with reason and rejects later registrations.
func (h *Hub) CloseAll(reason CloseReason) {
	h.mu.Lock()
	h.closed = true
	sessions := make([]Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(reason)
	}
	if len(sessions) > 0 {
		h.logger.Info("closed client sessions",
			logging.Int("sessions", len(sessions)),
			logging.String("reason", reason.String()),
		)
	}
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Stats returns delivery counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions:   h.Len(),
		Broadcasts: h.broadcasts.Load(),
		Frames:     h.frames.Load(),
		Evicted:    h.evicted.Load(),
	}
}

func (h *Hub) rosterLocked() ([]byte, error) {
	var roster []tracker.State
	if h.source != nil {
		roster = h.source.All()
	}
	if roster == nil {
		roster = []tracker.State{}
	}
	return json.Marshal(roster)
}

func (h *Hub) targetsLocked(exclude Session) []Session {
	out := make([]Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if exclude != nil && s == exclude {
			continue
		}
		out = append(out, s)
	}
	return out
}

// deliverLocked enqueues payload on targets and detaches the ones that refuse it.
func (h *Hub) deliverLocked(payload []byte, targets []Session) []Session {
	var evicted []Session
	for _, s := range targets {
		if s.Enqueue(payload) {
			h.frames.Add(1)
			continue
		}
		if h.removeLocked(s) {
			evicted = append(evicted, s)
		}
	}
	return evicted
}

func (h *Hub) removeLocked(s Session) bool {
	current, ok := h.sessions[s.ID()]
	if !ok || current != s {
		return false
	}
	delete(h.sessions, s.ID())
	return true
}

func (h *Hub) closeEvicted(evicted []Session) {
	for _, s := range evicted {
		h.evicted.Add(1)
		logging.WarnWithContext(h.logger, "client session evicted", "session_evicted",
			logging.String(logging.FieldSessionID, s.ID()),
			logging.String(logging.FieldErrorHint, "client is not draining its socket"),
			logging.String(logging.FieldImpact, "client stops receiving tracker updates until it reconnects"),
		)
		s.Close(CloseBackpressure)
	}
}
