package database

import (
	"context"
	"database/sql"
	"errors"
)

// Token is the live Strava credential set for one athlete
type Token struct {
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	Scope        *string
	UpdatedAt    int64
}

// UpsertToken stores the token set, replacing whatever was stored before.
// The athlete row must already exist.
func (db *DB) UpsertToken(ctx context.Context, t *Token) error {
	t.UpdatedAt = db.now().Unix()

	_, err := db.exec(ctx, `
		INSERT INTO strava_tokens (
			athlete_id, access_token, refresh_token, expires_at, scope, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (athlete_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			updated_at = excluded.updated_at
	`, t.AthleteID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.Scope, t.UpdatedAt)
	if err != nil {
		return &StorageError{Op: "upsert token", Err: err}
	}
	return nil
}

// GetToken returns the stored token set for an athlete, or nil when absent
func (db *DB) GetToken(ctx context.Context, athleteID int64) (*Token, error) {
	var t Token
	err := db.queryRow(ctx, `
		SELECT athlete_id, access_token, refresh_token, expires_at, scope, updated_at
		FROM strava_tokens WHERE athlete_id = ?
	`, athleteID).Scan(&t.AthleteID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.Scope, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get token", Err: err}
	}
	return &t, nil
}

// ListAthletesWithRefreshToken returns every token set holding a non-empty
// refresh token, in athlete id order
func (db *DB) ListAthletesWithRefreshToken(ctx context.Context) ([]*Token, error) {
	rows, err := db.query(ctx, `
		SELECT athlete_id, access_token, refresh_token, expires_at, scope, updated_at
		FROM strava_tokens
		WHERE refresh_token IS NOT NULL AND refresh_token <> ''
		ORDER BY athlete_id
	`)
	if err != nil {
		return nil, &StorageError{Op: "list tokens", Err: err}
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.AthleteID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.Scope, &t.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "scan token", Err: err}
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate tokens", Err: err}
	}
	return tokens, nil
}
