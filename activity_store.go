package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityRecord is a persisted audit entry.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:activity_log,alias:actl"`

	ID         uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventType  string         `bun:"event_type,notnull" json:"event_type,omitempty"`
	UserID     string         `bun:"user_id" json:"user_id,omitempty"`
	Email      string         `bun:"email" json:"email,omitempty"`
	Metadata   map[string]any `bun:"metadata" json:"metadata,omitempty"`
	OccurredAt *time.Time     `bun:"occurred_at,nullzero" json:"occurred_at,omitempty"`
	CreatedAt  *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ActivityLog is a bun-backed ActivitySink that keeps audit entries in the
// database alongside the records they describe.
type ActivityLog struct {
	db *bun.DB
}

var _ ActivitySink = (*ActivityLog)(nil)

// NewActivityLog builds the database-backed audit sink.
func NewActivityLog(db *bun.DB) *ActivityLog {
	return &ActivityLog{db: db}
}

// Record implements ActivitySink.
func (l *ActivityLog) Record(ctx context.Context, event ActivityEvent) error {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	record := &ActivityRecord{
		ID:         uuid.New(),
		EventType:  string(event.EventType),
		UserID:     event.UserID,
		Email:      event.Email,
		Metadata:   event.Metadata,
		OccurredAt: &occurred,
	}

	_, err := l.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// Recent returns up to limit audit entries, newest first.
func (l *ActivityLog) Recent(ctx context.Context, limit int) ([]*ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*ActivityRecord
	err := l.db.NewSelect().
		Model(&records).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

// RecentByUser returns up to limit audit entries for a single user, newest
// first.
func (l *ActivityLog) RecentByUser(ctx context.Context, userID string, limit int) ([]*ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*ActivityRecord
	err := l.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}
