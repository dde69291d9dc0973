package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"strava-training-load/internal/database"
)

// DashboardHandler serves the read-only data the dashboard displays
type DashboardHandler struct {
	db     *database.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(db *database.DB, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{db: db, logger: logger, now: time.Now}
}

type featuresResponse struct {
	AthleteID int64               `json:"athlete_id"`
	Features  []*database.Feature `json:"features"`
}

// HandleFeatures handles GET /athletes/{athleteID}/features?limit=N, newest first
func (h *DashboardHandler) HandleFeatures(w http.ResponseWriter, r *http.Request) {
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

	rows, err := h.db.ListFeatures(r.Context(), athleteID, limit)
	if err != nil {
		h.logger.Error("Failed to list features", "error", err, "athlete_id", athleteID)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load features")
		return
	}
	if rows == nil {
		rows = []*database.Feature{}
	}

	writeJSON(w, h.logger, http.StatusOK, featuresResponse{AthleteID: athleteID, Features: rows})
}

type tokenStatusResponse struct {
	AthleteID int64   `json:"athlete_id"`
	Connected bool    `json:"connected"`
	ExpiresAt *int64  `json:"expires_at,omitempty"`
	Expired   bool    `json:"expired"`
	Scope     *string `json:"scope,omitempty"`
	UpdatedAt *int64  `json:"updated_at,omitempty"`
}

// HandleTokenStatus handles GET /athletes/{athleteID}/token-status. Token
// values are never returned.
func (h *DashboardHandler) HandleTokenStatus(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.db.GetToken(r.Context(), athleteID)
	if err != nil {
		h.logger.Error("Failed to load token", "error", err, "athlete_id", athleteID)
		writeError(w, h.logger, http.StatusInternalServerError, "failed to load token status")
		return
	}

	resp := tokenStatusResponse{AthleteID: athleteID}
	if token != nil {
		resp.Connected = token.RefreshToken != ""
		resp.ExpiresAt = &token.ExpiresAt
		resp.Expired = token.ExpiresAt <= h.now().Unix()
		resp.Scope = token.Scope
		resp.UpdatedAt = &token.UpdatedAt
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
