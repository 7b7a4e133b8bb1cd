package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem that emitted a record.
	FieldComponent = "component"
	// FieldTrackerID identifies a tracker in the roster.
	FieldTrackerID = "tracker_id"
	// FieldSessionID identifies a connected UI session.
	FieldSessionID = "session_id"
	// FieldRunID identifies one daemon process run.
	FieldRunID = "run_id"
	// FieldRemoteAddr is the peer address of a socket.
	FieldRemoteAddr = "remote_addr"
	// FieldMode is a scene preset name.
	FieldMode = "mode"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type sessionKey struct{}

// WithSessionID stores a session identifier on ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the session identifier stored on ctx.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if id, ok := SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	return fields
}

// WithContext returns logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
