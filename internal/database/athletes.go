package database

import (
	"context"
	"database/sql"
	"errors"
)

// Athlete represents a Strava athlete profile
type Athlete struct {
	AthleteID int64
	Firstname *string
	Lastname  *string
	City      *string
	Country   *string
	Raw       *string
	CreatedAt int64
	UpdatedAt int64
}

// UpsertAthlete inserts or updates an athlete profile. created_at is kept on update.
func (db *DB) UpsertAthlete(ctx context.Context, a *Athlete) error {
	now := db.now().Unix()
	a.UpdatedAt = now
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}

	_, err := db.exec(ctx, `
		INSERT INTO athletes (
			athlete_id, firstname, lastname, city, country, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (athlete_id) DO UPDATE SET
			firstname = excluded.firstname,
			lastname = excluded.lastname,
			city = excluded.city,
			country = excluded.country,
			raw = excluded.raw,
			updated_at = excluded.updated_at
	`, a.AthleteID, a.Firstname, a.Lastname, a.City, a.Country, a.Raw, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return &StorageError{Op: "upsert athlete", Err: err}
	}
	return nil
}

// GetAthlete retrieves an athlete by ID, returning nil when absent
func (db *DB) GetAthlete(ctx context.Context, athleteID int64) (*Athlete, error) {
	var a Athlete
	err := db.queryRow(ctx, `
		SELECT athlete_id, firstname, lastname, city, country, raw, created_at, updated_at
		FROM athletes WHERE athlete_id = ?
	`, athleteID).Scan(
		&a.AthleteID, &a.Firstname, &a.Lastname, &a.City, &a.Country, &a.Raw,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get athlete", Err: err}
	}
	return &a, nil
}

// CountAthletes returns the number of stored athletes
func (db *DB) CountAthletes(ctx context.Context) (int64, error) {
	return db.count(ctx, "count athletes", `SELECT COUNT(*) FROM athletes`)
}
