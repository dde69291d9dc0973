package database

import "context"

// Feature is one derived row per activity. The rolling sums cover the
// athlete's activities starting within [start-N days, start].
type Feature struct {
	ActivityID     int64    `json:"activity_id"`
	AthleteID      int64    `json:"athlete_id"`
	StartDate      int64    `json:"start_date"`
	MovingTimeS    *int64   `json:"moving_time_s"`
	DistanceM      *float64 `json:"distance_m"`
	ElevationGainM *float64 `json:"elevation_gain_m"`
	PaceSPerKm     *float64 `json:"pace_s_per_km"`
	ElevMPerKm     *float64 `json:"elev_m_per_km"`
	AvgHR          *float64 `json:"avg_hr"`
	MaxHR          *float64 `json:"max_hr"`
	AvgWatts       *float64 `json:"avg_watts"`
	MaxWatts       *float64 `json:"max_watts"`
	HRxTime        *float64 `json:"hr_x_time"`
	Dist7dM        float64  `json:"dist_7d_m"`
	Elev7dM        float64  `json:"elev_7d_m"`
	Time7dS        float64  `json:"time_7d_s"`
	Dist28dM       float64  `json:"dist_28d_m"`
	Elev28dM       float64  `json:"elev_28d_m"`
	Time28dS       float64  `json:"time_28d_s"`
	UpdatedAt      int64    `json:"updated_at"`
}

const featureColumns = `
	activity_id, athlete_id, start_date, moving_time_s, distance_m, elevation_gain_m,
	pace_s_per_km, elev_m_per_km, avg_hr, max_hr, avg_watts, max_watts, hr_x_time,
	dist_7d_m, elev_7d_m, time_7d_s, dist_28d_m, elev_28d_m, time_28d_s, updated_at`

func (f *Feature) scanTargets() []any {
	return []any{
		&f.ActivityID, &f.AthleteID, &f.StartDate, &f.MovingTimeS, &f.DistanceM, &f.ElevationGainM,
		&f.PaceSPerKm, &f.ElevMPerKm, &f.AvgHR, &f.MaxHR, &f.AvgWatts, &f.MaxWatts, &f.HRxTime,
		&f.Dist7dM, &f.Elev7dM, &f.Time7dS, &f.Dist28dM, &f.Elev28dM, &f.Time28dS, &f.UpdatedAt,
	}
}

// UpsertFeature inserts or overwrites the feature row for an activity
func (db *DB) UpsertFeature(ctx context.Context, f *Feature) error {
	if f.UpdatedAt == 0 {
		f.UpdatedAt = db.now().Unix()
	}

	_, err := db.exec(ctx, `
		INSERT INTO activity_features (`+featureColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (activity_id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			start_date = excluded.start_date,
			moving_time_s = excluded.moving_time_s,
			distance_m = excluded.distance_m,
			elevation_gain_m = excluded.elevation_gain_m,
			pace_s_per_km = excluded.pace_s_per_km,
			elev_m_per_km = excluded.elev_m_per_km,
			avg_hr = excluded.avg_hr,
			max_hr = excluded.max_hr,
			avg_watts = excluded.avg_watts,
			max_watts = excluded.max_watts,
			hr_x_time = excluded.hr_x_time,
			dist_7d_m = excluded.dist_7d_m,
			elev_7d_m = excluded.elev_7d_m,
			time_7d_s = excluded.time_7d_s,
			dist_28d_m = excluded.dist_28d_m,
			elev_28d_m = excluded.elev_28d_m,
			time_28d_s = excluded.time_28d_s,
			updated_at = excluded.updated_at
	`,
		f.ActivityID, f.AthleteID, f.StartDate, f.MovingTimeS, f.DistanceM, f.ElevationGainM,
		f.PaceSPerKm, f.ElevMPerKm, f.AvgHR, f.MaxHR, f.AvgWatts, f.MaxWatts, f.HRxTime,
		f.Dist7dM, f.Elev7dM, f.Time7dS, f.Dist28dM, f.Elev28dM, f.Time28dS, f.UpdatedAt,
	)
	if err != nil {
		return &StorageError{Op: "upsert feature", Err: err}
	}
	return nil
}

// ListFeatures returns an athlete's feature rows, most recent first.
// limit <= 0 returns all rows.
func (db *DB) ListFeatures(ctx context.Context, athleteID int64, limit int) ([]*Feature, error) {
	query := `SELECT ` + featureColumns + ` FROM activity_features
		WHERE athlete_id = ? ORDER BY start_date DESC, activity_id DESC`
	args := []any{athleteID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return db.listFeatures(ctx, query, args...)
}

// ListTrainingFeatures returns every feature row with a defined pace, oldest first
func (db *DB) ListTrainingFeatures(ctx context.Context) ([]*Feature, error) {
	return db.listFeatures(ctx, `SELECT `+featureColumns+` FROM activity_features
		WHERE pace_s_per_km IS NOT NULL ORDER BY start_date, activity_id`)
}

// CountFeatures returns the number of feature rows
func (db *DB) CountFeatures(ctx context.Context) (int64, error) {
	return db.count(ctx, "count features", `SELECT COUNT(*) FROM activity_features`)
}

func (db *DB) listFeatures(ctx context.Context, query string, args ...any) ([]*Feature, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list features", Err: err}
	}
	defer rows.Close()

	var features []*Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(f.scanTargets()...); err != nil {
			return nil, &StorageError{Op: "scan feature", Err: err}
		}
		features = append(features, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate features", Err: err}
	}
	return features, nil
}
