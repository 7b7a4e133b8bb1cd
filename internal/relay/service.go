// Package relay owns every write to the tracker roster and the notification
// that follows it.
//
// Browser sessions, the OSC feed, and the HTTP control routes all go through
// Service so that a successful mutation is always followed by exactly one
// fan-out: the full roster for tracker changes (excluding the browser that
// caused it) and a refresh event for scene changes.
package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"psnrelay/internal/hub"
	"psnrelay/internal/logging"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

// ErrInvalidUpdate is returned for payloads that fail validation.
var ErrInvalidUpdate = errors.New("invalid tracker update")

// MaxTrackerID is the largest id PSN can carry.
const MaxTrackerID = math.MaxUint16

// Service coordinates the roster, the scene presets, and client fan-out.
type Service struct {
	store  *tracker.Store
	scene  *scene.Config
	hub    *hub.Hub
	start  scene.Point
	logger *slog.Logger
}

// New wires a service. start is the internal position used for added trackers.
func New(store *tracker.Store, sceneCfg *scene.Config, h *hub.Hub, start scene.Point, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		scene:  sceneCfg,
		hub:    h,
		start:  start,
		logger: logging.NewComponentLogger(logger, "relay"),
	}
}

// Hub exposes the fan-out hub for session registration.
func (s *Service) Hub() *hub.Hub { return s.hub }

// All returns the roster ordered by id.
func (s *Service) All() []tracker.State { return s.store.All() }

// Len returns the roster size.
func (s *Service) Len() int { return s.store.Len() }

// Active returns the active scene preset.
func (s *Service) Active() scene.Preset { return s.scene.Active() }

// Mode returns the active preset name.
func (s *Service) Mode() string { return s.scene.Mode() }

// Modes returns every preset name in configuration order.
func (s *Service) Modes() []string { return s.scene.Modes() }

// ApplyClientUpdate stores an update from a browser session and sends the new
// roster to every other session.
func (s *Service) ApplyClientUpdate(origin hub.Session, st tracker.State) error {
	if err := ValidateState(st); err != nil {
		return err
	}
	s.store.Upsert(st)
	s.hub.BroadcastFullState(origin)
	return nil
}

// ApplyFeedUpdate converts a scene-space position from the inbound feed under
// the active preset, stores it, and sends the roster to every session.
func (s *Service) ApplyFeedUpdate(id int, p scene.Point) (tracker.State, error) {
	if err := validateID(id); err != nil {
		return tracker.State{}, err
	}
	if !finitePoint(p) {
		return tracker.State{}, fmt.Errorf("%w: tracker %d position must be finite", ErrInvalidUpdate, id)
	}
	internal := scene.ToInternal(p, s.scene.Active().Bounds)
	st := tracker.State{ID: id, X: internal.X, Y: internal.Y, Z: internal.Z}
	s.store.Upsert(st)
	s.hub.BroadcastFullState(nil)
	return st, nil
}

// AddTracker creates id at the start position.
func (s *Service) AddTracker(id int) (tracker.State, error) {
	if err := validateID(id); err != nil {
		return tracker.State{}, err
	}
	st := tracker.State{ID: id, X: s.start.X, Y: s.start.Y, Z: s.start.Z}
	if err := s.store.Add(st); err != nil {
		return tracker.State{}, err
	}
	s.hub.BroadcastFullState(nil)
	s.logger.Info("tracker added", logging.Int(logging.FieldTrackerID, id), logging.Int("trackers", s.store.Len()))
	return st, nil
}

// RemoveTracker deletes id.
func (s *Service) RemoveTracker(id int) error {
	if err := s.store.Remove(id); err != nil {
		return err
	}
	s.hub.BroadcastFullState(nil)
	s.logger.Info("tracker removed", logging.Int(logging.FieldTrackerID, id), logging.Int("trackers", s.store.Len()))
	return nil
}

// SetMode switches the active preset and asks every client to refresh.
// An unknown name leaves the scene untouched and sends nothing.
func (s *Service) SetMode(name string) (scene.Preset, error) {
	previous := s.scene.Mode()
	preset, err := s.scene.SetMode(name)
	if err != nil {
		return preset, err
	}
	s.hub.BroadcastEvent(hub.RefreshEvent)
	s.logger.Info("scene mode changed",
		logging.String(logging.FieldMode, preset.Name),
		logging.String("previous_mode", previous),
	)
	return preset, nil
}

// ReloadPresets replaces the preset set, keeping the active mode when it still
// exists and falling back otherwise, then asks every client to refresh.
func (s *Service) ReloadPresets(presets []scene.Preset, fallback string) (scene.Preset, error) {
	preset, err := s.scene.ReplacePresets(presets, fallback)
	if err != nil {
		return preset, err
	}
	s.hub.BroadcastEvent(hub.RefreshEvent)
	s.logger.Info("scene presets reloaded",
		logging.String(logging.FieldMode, preset.Name),
		logging.Int("presets", len(presets)),
	)
	return preset, nil
}

// ValidateState checks an internal-space tracker state. x and y are not
// clamped to [0,1] so browsers may drag markers slightly off the plane.
func ValidateState(st tracker.State) error {
	if err := validateID(st.ID); err != nil {
		return err
	}
	if !finitePoint(scene.Point{X: st.X, Y: st.Y, Z: st.Z}) {
		return fmt.Errorf("%w: tracker %d coordinates must be finite", ErrInvalidUpdate, st.ID)
	}
	return nil
}

func validateID(id int) error {
	if id < 0 || id > MaxTrackerID {
		return fmt.Errorf("%w: id %d outside [0, %d]", ErrInvalidUpdate, id, MaxTrackerID)
	}
	return nil
}

func finitePoint(p scene.Point) bool {
	for _, v := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
