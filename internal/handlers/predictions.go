package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"strava-training-load/internal/database"
	"strava-training-load/internal/predict"
)

// PredictionsHandler prices hypothetical races and lists saved predictions
type PredictionsHandler struct {
	predictor *predict.Predictor
	db        *database.DB
	logger    *slog.Logger
}

// NewPredictionsHandler creates a new predictions handler
func NewPredictionsHandler(predictor *predict.Predictor, db *database.DB, logger *slog.Logger) *PredictionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionsHandler{predictor: predictor, db: db, logger: logger}
}

type modelSummary struct {
	Version   string  `json:"version"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	MAE       float64 `json:"mae_s_per_km"`
	RMSE      float64 `json:"rmse_s_per_km"`
}

type predictionResponse struct {
	Prediction *database.Prediction `json:"prediction"`
	Pace       string               `json:"pace"`
	Time       string               `json:"time"`
	Model      modelSummary         `json:"model"`
}

// HandleCreate handles POST /athletes/{athleteID}/predictions. The body is a
// predict.Scenario; the result is saved.
func (h *PredictionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	var scenario predict.Scenario
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&scenario); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := scenario.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	pred, model, err := h.predictor.Predict(r.Context(), athleteID, scenario, true)
	switch {
	case errors.Is(err, predict.ErrNotEnoughData):
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Prediction failed", "error", err, "athlete_id", athleteID)
		writeError(w, h.logger, http.StatusInternalServerError, "prediction failed")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, predictionResponse{
		Prediction: pred,
		Pace:       predict.FormatSeconds(pred.PredictedPaceSPerKm) + "/km",
		Time:       predict.FormatSeconds(pred.PredictedTimeS),
		Model: modelSummary{
			Version:   model.Version,
			TrainRows: model.TrainRows,
			TestRows:  model.TestRows,
			MAE:       model.MAE,
			RMSE:      model.RMSE,
		},
	})
}

// HandleList handles GET /athletes/{athleteID}/predictions?limit=N
func (h *PredictionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	preds, err := h.db.ListPredictions(r.Context(), athleteID, limit)
	if err != nil {
		h.logger.Error("Failed to list predictions", "error", err, "athlete_id", athleteID)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	if preds == nil {
		preds = []*database.Prediction{}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"athlete_id":  athleteID,
		"predictions": preds,
	})
}
