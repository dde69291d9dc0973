package database

import (
	"context"
	"database/sql"
	"errors"
)

// Cursor identifiers used by the Strava activity sync
const (
	SourceStrava  = "strava"
	KeyAfterEpoch = "last_after_epoch"
)

// GetCursor returns the stored cursor value. ok is false when nothing is stored.
func (db *DB) GetCursor(ctx context.Context, athleteID int64, source, key string) (value int64, ok bool, err error) {
	err = db.queryRow(ctx, `
		SELECT value FROM ingestion_state
		WHERE athlete_id = ? AND source = ? AND key = ?
	`, athleteID, source, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &StorageError{Op: "get cursor", Err: err}
	}
	return value, true, nil
}

// SetCursor stores a cursor value. A stored value is never lowered.
func (db *DB) SetCursor(ctx context.Context, athleteID int64, source, key string, value int64) error {
	_, err := db.exec(ctx, `
		INSERT INTO ingestion_state (athlete_id, source, key, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (athlete_id, source, key) DO UPDATE SET
			value = CASE WHEN excluded.value > ingestion_state.value
				THEN excluded.value ELSE ingestion_state.value END,
			updated_at = excluded.updated_at
	`, athleteID, source, key, value, db.now().Unix())
	if err != nil {
		return &StorageError{Op: "set cursor", Err: err}
	}
	return nil
}
