package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"strava-training-load/internal/database"
)

// Store is what the predictor reads training rows from and saves results to
type Store interface {
	ListTrainingFeatures(ctx context.Context) ([]*database.Feature, error)
	InsertPrediction(ctx context.Context, p *database.Prediction) error
}

// Predictor trains on the stored feature rows and prices scenarios
type Predictor struct {
	store  Store
	ridge  float64
	logger *slog.Logger
}

func NewPredictor(store Store, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{store: store, ridge: DefaultRidge, logger: logger}
}

// Train fits a fresh model on every stored feature row
func (p *Predictor) Train(ctx context.Context) (*Model, error) {
	rows, err := p.store.ListTrainingFeatures(ctx)
	if err != nil {
		return nil, err
	}

	model, err := Train(rows, p.ridge)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Trained pace model",
		"version", model.Version,
		"train_rows", model.TrainRows,
		"test_rows", model.TestRows,
		"mae_s_per_km", model.MAE,
		"rmse_s_per_km", model.RMSE)
	return model, nil
}

// Predict trains a model, prices the scenario for athleteID and, when save is
// set, stores the result
func (p *Predictor) Predict(ctx context.Context, athleteID int64, s Scenario, save bool) (*database.Prediction, *Model, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	model, err := p.Train(ctx)
	if err != nil {
		return nil, nil, err
	}
	result := model.Predict(s)

	inputs, err := json.Marshal(Inputs(s))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode model inputs: %w", err)
	}

	pred := &database.Prediction{
		AthleteID:           athleteID,
		PredictionType:      PredictionType,
		ModelVersion:        model.Version,
		DistanceM:           s.DistanceKm * 1000,
		ElevationGainM:      s.ElevationGainM,
		PredictedPaceSPerKm: result.PaceSPerKm,
		PredictedTimeS:      result.TimeS,
		Features:            string(inputs),
	}

	if save {
		if err := p.store.InsertPrediction(ctx, pred); err != nil {
			return nil, nil, err
		}
		p.logger.Info("Saved prediction", "athlete_id", athleteID, "prediction_id", pred.PredictionID)
	}
	return pred, model, nil
}
