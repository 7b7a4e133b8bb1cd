package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ModeResponse reports the active scene mode.
type ModeResponse struct {
	Mode  string   `json:"mode"`
	Modes []string `json:"modes,omitempty"`
}

// ModeRequest selects a scene mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// TrackerRequest names a tracker to add or remove.
type TrackerRequest struct {
	ID int `json:"id"`
}

// TrackerView describes one tracker in internal and scene coordinates.
type TrackerView struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	SceneX float64 `json:"sceneX"`
	SceneY float64 `json:"sceneY"`
	SceneZ float64 `json:"sceneZ"`
}

// TrackerListResponse is the roster under the active mode.
type TrackerListResponse struct {
	Mode     string        `json:"mode"`
	Trackers []TrackerView `json:"trackers"`
}

// TrackerRemovedResponse acknowledges a removal.
type TrackerRemovedResponse struct {
	ID      int  `json:"id"`
	Removed bool `json:"removed"`
}

// HubStats mirrors the client hub counters.
type HubStats struct {
	Sessions   int    `json:"sessions"`
	Broadcasts uint64 `json:"broadcasts"`
	Frames     uint64 `json:"frames"`
	Evicted    uint64 `json:"evicted"`
}

// BroadcasterStats mirrors the PSN broadcaster counters.
type BroadcasterStats struct {
	Destination string `json:"destination"`
	Ticks       uint64 `json:"ticks"`
	Packets     uint64 `json:"packets"`
	InfoPackets uint64 `json:"infoPackets"`
	SendErrors  uint64 `json:"sendErrors"`
}

// FeedStats mirrors the OSC feed counters.
type FeedStats struct {
	Address  string `json:"address"`
	Packets  uint64 `json:"packets"`
	Accepted uint64 `json:"accepted"`
	Ignored  uint64 `json:"ignored"`
	Dropped  uint64 `json:"dropped"`
}

// StatusResponse aggregates daemon runtime information.
type StatusResponse struct {
	Running       bool              `json:"running"`
	PID           int               `json:"pid"`
	StartedAt     string            `json:"startedAt"`
	UptimeSeconds float64           `json:"uptimeSeconds"`
	Mode          string            `json:"mode"`
	Modes         []string          `json:"modes"`
	Trackers      int               `json:"trackers"`
	LockFilePath  string            `json:"lockFilePath"`
	ConfigPath    string            `json:"configPath,omitempty"`
	Hub           HubStats          `json:"hub"`
	Broadcaster   *BroadcasterStats `json:"broadcaster,omitempty"`
	Feed          *FeedStats        `json:"feed,omitempty"`
}
