// Package logging assembles the structured slog loggers used across psnrelay.
//
// It owns the console and JSON handlers, level parsing, output fan-out to
// stdout and the run log file, and the standard field keys (component,
// tracker_id, session_id, remote_addr, mode) that every subsystem tags its
// records with. Component loggers are derived with NewComponentLogger and may
// carry a per-component minimum level from the [logging] config section.
//
// Tests and wiring code that cannot fail should use NewNop.
package logging
