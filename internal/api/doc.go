// Package api defines wire-format types for the HTTP control surface and a
// client the CLI uses to talk to a running daemon.
//
// # Key Types
//
// StatusResponse: uptime, active mode, roster size, connected clients, and
// the counters of the hub, PSN broadcaster, and OSC feed.
//
// TrackerView: one tracker in both normalized internal coordinates and scene
// meters under the active preset.
//
// ModeResponse: the active mode plus the modes that may be selected.
//
// # Client
//
// Client wraps an HTTPDoer and decodes `{"error": ...}` bodies into
// *StatusError so callers can branch on the HTTP status with errors.As.
//
// # Design Notes
//
// DTOs use camelCase JSON tags like the rest of the API. Timestamps use
// RFC3339 with milliseconds. Browser-facing routes (/mode, /tracker) share
// these types so the UI and the CLI see the same payloads.
package api
