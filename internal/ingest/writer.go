package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"strava-training-load/internal/database"
)

// ActivityRepository stores activities. UpsertActivity must be idempotent:
// writing the same activity id twice leaves one row holding the latest data.
type ActivityRepository interface {
	UpsertActivity(ctx context.Context, a *database.Activity) error
}

// Writer normalizes raw activities and upserts them
type Writer struct {
	repo   ActivityRepository
	now    func() time.Time
	logger *slog.Logger
}

// BatchResult summarizes an UpsertBatch call
type BatchResult struct {
	Upserted int
	// MaxEpoch is the latest start time seen, nil when no record had one
	MaxEpoch *int64
}

// NewWriter creates a Writer over repo
func NewWriter(repo ActivityRepository, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{repo: repo, now: time.Now, logger: logger}
}

// SetClock replaces the clock used for updated_at
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// Upsert normalizes one record and writes it, always refreshing updated_at
// and the raw payload. It returns the record's start time in epoch seconds,
// or nil when the record has none.
func (w *Writer) Upsert(ctx context.Context, athleteID int64, raw json.RawMessage) (*int64, error) {
	activity, err := Normalize(athleteID, raw)
	if err != nil {
		return nil, err
	}
	activity.UpdatedAt = w.now().Unix()

	if err := w.repo.UpsertActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to upsert activity %d: %w", activity.ActivityID, err)
	}
	return activity.StartDate, nil
}

// UpsertBatch writes records in order, so a repeated id ends up holding the
// last copy, and tracks the highest start time. It stops at the first error.
func (w *Writer) UpsertBatch(ctx context.Context, athleteID int64, records []json.RawMessage) (BatchResult, error) {
	var result BatchResult
	for _, raw := range records {
		start, err := w.Upsert(ctx, athleteID, raw)
		if err != nil {
			return result, err
		}
		result.Upserted++
		if start != nil && (result.MaxEpoch == nil || *start > *result.MaxEpoch) {
			epoch := *start
			result.MaxEpoch = &epoch
		}
	}

	w.logger.Debug("upserted activities", "athlete_id", athleteID, "count", result.Upserted)
	return result, nil
}
