package database

import (
	"context"

	"github.com/google/uuid"
)

// Prediction is a saved model output together with the inputs that produced it
type Prediction struct {
	PredictionID        string  `json:"prediction_id"`
	AthleteID           int64   `json:"athlete_id"`
	PredictionType      string  `json:"prediction_type"`
	ModelVersion        string  `json:"model_version"`
	DistanceM           float64 `json:"distance_m"`
	ElevationGainM      float64 `json:"elevation_gain_m"`
	PredictedPaceSPerKm float64 `json:"predicted_pace_s_per_km"`
	PredictedTimeS      float64 `json:"predicted_time_s"`
	Features            string  `json:"features"` // JSON object of model inputs
	CreatedAt           int64   `json:"created_at"`
}

// InsertPrediction stores a prediction, assigning its id when empty
func (db *DB) InsertPrediction(ctx context.Context, p *Prediction) error {
	if p.PredictionID == "" {
		p.PredictionID = uuid.NewString()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = db.now().Unix()
	}

	_, err := db.exec(ctx, `
		INSERT INTO model_predictions (
			prediction_id, athlete_id, prediction_type, model_version,
			distance_m, elevation_gain_m, predicted_pace_s_per_km, predicted_time_s,
			features, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PredictionID, p.AthleteID, p.PredictionType, p.ModelVersion,
		p.DistanceM, p.ElevationGainM, p.PredictedPaceSPerKm, p.PredictedTimeS,
		p.Features, p.CreatedAt)
	if err != nil {
		return &StorageError{Op: "insert prediction", Err: err}
	}
	return nil
}

// ListPredictions returns an athlete's saved predictions, newest first
func (db *DB) ListPredictions(ctx context.Context, athleteID int64, limit int) ([]*Prediction, error) {
	query := `
		SELECT prediction_id, athlete_id, prediction_type, model_version,
		       distance_m, elevation_gain_m, predicted_pace_s_per_km, predicted_time_s,
		       features, created_at
		FROM model_predictions
		WHERE athlete_id = ?
		ORDER BY created_at DESC, prediction_id`
	args := []any{athleteID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list predictions", Err: err}
	}
	defer rows.Close()

	var predictions []*Prediction
	for rows.Next() {
		var p Prediction
		err := rows.Scan(&p.PredictionID, &p.AthleteID, &p.PredictionType, &p.ModelVersion,
			&p.DistanceM, &p.ElevationGainM, &p.PredictedPaceSPerKm, &p.PredictedTimeS,
			&p.Features, &p.CreatedAt)
		if err != nil {
			return nil, &StorageError{Op: "scan prediction", Err: err}
		}
		predictions = append(predictions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate predictions", Err: err}
	}
	return predictions, nil
}
