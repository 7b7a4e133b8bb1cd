package api

import (
	"time"

	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

// FromTrackerState converts a stored tracker into its API representation,
// adding scene coordinates under bounds.
func FromTrackerState(st tracker.State, bounds scene.Bounds) TrackerView {
	p := scene.ToScene(scene.Point{X: st.X, Y: st.Y, Z: st.Z}, bounds)
	return TrackerView{
		ID:     st.ID,
		X:      st.X,
		Y:      st.Y,
		Z:      st.Z,
		SceneX: p.X,
		SceneY: p.Y,
		SceneZ: p.Z,
	}
}

// TrackerViews converts a roster under the active preset.
func TrackerViews(states []tracker.State, preset scene.Preset) TrackerListResponse {
	views := make([]TrackerView, 0, len(states))
	for _, st := range states {
		views = append(views, FromTrackerState(st, preset.Bounds))
	}
	return TrackerListResponse{Mode: preset.Name, Trackers: views}
}

// FormatTime renders t for API payloads. The zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a timestamp produced by FormatTime.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}
