package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"strava-training-load/internal/database"
	"strava-training-load/internal/metrics"
	"strava-training-load/internal/middleware"
	"strava-training-load/internal/oauth"
	"strava-training-load/internal/predict"
)

// NewRouter wires every HTTP endpoint served by the serve command
func NewRouter(db *database.DB, manager *oauth.Manager, predictor *predict.Predictor, logger *slog.Logger) http.Handler {
	oauthHandler := NewOAuthHandler(manager, logger)
	dashboard := NewDashboardHandler(db, logger)
	predictions := NewPredictionsHandler(predictor, db, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/health", middleware.WrapHandler(metrics.EndpointHealth, healthHandler(db, logger)))
	r.Method(http.MethodGet, "/oauth-start", middleware.WrapHandler(metrics.EndpointOAuthStart, oauthHandler.HandleAuthStart))
	r.Method(http.MethodGet, "/oauth-callback", middleware.WrapHandler(metrics.EndpointOAuthCallback, oauthHandler.HandleCallback))

	r.Route("/athletes/{athleteID}", func(r chi.Router) {
		r.Method(http.MethodGet, "/features", middleware.WrapHandler(metrics.EndpointFeatures, dashboard.HandleFeatures))
		r.Method(http.MethodGet, "/token-status", middleware.WrapHandler(metrics.EndpointTokenStatus, dashboard.HandleTokenStatus))
		r.Method(http.MethodGet, "/predictions", middleware.WrapHandler(metrics.EndpointPredictions, predictions.HandleList))
		r.Method(http.MethodPost, "/predictions", middleware.WrapHandler(metrics.EndpointPredictions, predictions.HandleCreate))
	})

	return r
}

func healthHandler(db *database.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Health(); err != nil {
			logger.Error("Health check failed", "error", err)
			writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
