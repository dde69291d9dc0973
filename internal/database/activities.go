package database

import (
	"context"
	"database/sql"
	"errors"
)

// Activity represents a normalized Strava activity. Pointer fields are
// NULL when the provider omitted them.
type Activity struct {
	ActivityID          int64
	AthleteID           int64
	Name                *string
	SportType           *string
	StartDate           *int64 // Unix timestamp
	Timezone            *string
	ElapsedTime         *int64
	MovingTime          *int64
	DistanceM           *float64
	TotalElevationGainM *float64
	AverageSpeedMPS     *float64
	MaxSpeedMPS         *float64
	AverageHeartrate    *float64
	MaxHeartrate        *float64
	AverageWatts        *float64
	MaxWatts            *float64
	AverageCadence      *float64
	Visibility          *string
	Trainer             *bool
	Commute             *bool
	StartLat            *float64
	StartLng            *float64
	Raw                 string
	CreatedAt           int64
	UpdatedAt           int64
}

const activityColumns = `
	activity_id, athlete_id, name, sport_type, start_date, timezone,
	elapsed_time, moving_time, distance_m, total_elevation_gain_m,
	average_speed_mps, max_speed_mps, average_heartrate, max_heartrate,
	average_watts, max_watts, average_cadence, visibility, trainer, commute,
	start_lat, start_lng, raw, created_at, updated_at`

func (a *Activity) scanTargets() []any {
	return []any{
		&a.ActivityID, &a.AthleteID, &a.Name, &a.SportType, &a.StartDate, &a.Timezone,
		&a.ElapsedTime, &a.MovingTime, &a.DistanceM, &a.TotalElevationGainM,
		&a.AverageSpeedMPS, &a.MaxSpeedMPS, &a.AverageHeartrate, &a.MaxHeartrate,
		&a.AverageWatts, &a.MaxWatts, &a.AverageCadence, &a.Visibility, &a.Trainer, &a.Commute,
		&a.StartLat, &a.StartLng, &a.Raw, &a.CreatedAt, &a.UpdatedAt,
	}
}

// UpsertActivity inserts or fully replaces an activity keyed by activity_id.
// Only created_at survives an update. UpdatedAt is used as given; when zero
// the store clock is used.
func (db *DB) UpsertActivity(ctx context.Context, a *Activity) error {
	if a.UpdatedAt == 0 {
		a.UpdatedAt = db.now().Unix()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = a.UpdatedAt
	}

	_, err := db.exec(ctx, `
		INSERT INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			sport_type = excluded.sport_type,
			start_date = excluded.start_date,
			timezone = excluded.timezone,
			elapsed_time = excluded.elapsed_time,
			moving_time = excluded.moving_time,
			distance_m = excluded.distance_m,
			total_elevation_gain_m = excluded.total_elevation_gain_m,
			average_speed_mps = excluded.average_speed_mps,
			max_speed_mps = excluded.max_speed_mps,
			average_heartrate = excluded.average_heartrate,
			max_heartrate = excluded.max_heartrate,
			average_watts = excluded.average_watts,
			max_watts = excluded.max_watts,
			average_cadence = excluded.average_cadence,
			visibility = excluded.visibility,
			trainer = excluded.trainer,
			commute = excluded.commute,
			start_lat = excluded.start_lat,
			start_lng = excluded.start_lng,
			raw = excluded.raw,
			updated_at = excluded.updated_at
	`,
		a.ActivityID, a.AthleteID, a.Name, a.SportType, a.StartDate, a.Timezone,
		a.ElapsedTime, a.MovingTime, a.DistanceM, a.TotalElevationGainM,
		a.AverageSpeedMPS, a.MaxSpeedMPS, a.AverageHeartrate, a.MaxHeartrate,
		a.AverageWatts, a.MaxWatts, a.AverageCadence, a.Visibility, a.Trainer, a.Commute,
		a.StartLat, a.StartLng, a.Raw, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return &StorageError{Op: "upsert activity", Err: err}
	}
	return nil
}

// GetActivity retrieves an activity by ID, returning nil when absent
func (db *DB) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	var a Activity
	err := db.queryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = ?`, activityID).
		Scan(a.scanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get activity", Err: err}
	}
	return &a, nil
}

// CountActivities returns the number of stored activities, optionally for one
// athlete (athleteID > 0)
func (db *DB) CountActivities(ctx context.Context, athleteID int64) (int64, error) {
	if athleteID > 0 {
		return db.count(ctx, "count activities", `SELECT COUNT(*) FROM activities WHERE athlete_id = ?`, athleteID)
	}
	return db.count(ctx, "count activities", `SELECT COUNT(*) FROM activities`)
}

// ListActivitiesForFeatures returns every activity with a start date,
// ordered by athlete, start date and id
func (db *DB) ListActivitiesForFeatures(ctx context.Context) ([]*Activity, error) {
	rows, err := db.query(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE start_date IS NOT NULL
		ORDER BY athlete_id, start_date, activity_id
	`)
	if err != nil {
		return nil, &StorageError{Op: "list activities", Err: err}
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(a.scanTargets()...); err != nil {
			return nil, &StorageError{Op: "scan activity", Err: err}
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate activities", Err: err}
	}
	return activities, nil
}
