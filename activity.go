package users

import (
	"context"
	"time"
)

// ActivityEventType enumerates the audit events the core emits.
type ActivityEventType string

const (
	ActivityEventRegisterSuccess ActivityEventType = "user.register.success"
	ActivityEventRegisterFailure ActivityEventType = "user.register.failure"
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventUserUpdated     ActivityEventType = "user.updated"
	ActivityEventUserSoftDeleted ActivityEventType = "user.soft_deleted"
	ActivityEventUserRestored    ActivityEventType = "user.restored"
	ActivityEventUserPurged      ActivityEventType = "user.purged"
)

// ActivityEvent captures audit-friendly information about an action. The
// core emits these; sinks decide how to format and where to keep them.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
