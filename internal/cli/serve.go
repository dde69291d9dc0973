package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"strava-training-load/internal/database"
	"strava-training-load/internal/features"
	"strava-training-load/internal/handlers"
	"strava-training-load/internal/metrics"
	"strava-training-load/internal/oauth"
	"strava-training-load/internal/predict"
	"strava-training-load/internal/strava"
	"strava-training-load/internal/syncer"
)

const (
	collectInterval = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server: Strava connect flow, per-athlete feature and
token views, and pace predictions.

A newly connected athlete is synced in the background and features are
recomputed afterwards. With METRICS_ENABLED, Prometheus metrics are served
on METRICS_HOST:METRICS_PORT.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	cfg, db, logger := rt.cfg, rt.db, rt.logger

	logger.Info("Starting strava-training-load server",
		"host", cfg.Host,
		"port", cfg.Port,
		"postgres", cfg.UsesPostgres(),
		"log_level", cfg.LogLevel)

	client := strava.NewClient(cfg, logger)

	manager := oauth.NewManager(db, client, logger)
	manager.StartCleanup(ctx)

	bg := newBackgroundSync(ctx, syncer.New(db, client, cfg, logger), features.NewDeriver(db, logger), logger)
	manager.OnConnect(bg.trigger)

	router := handlers.NewRouter(db, manager, predict.NewPredictor(db, logger), logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsServer = startMetricsServer(ctx, cfg.MetricsHost, cfg.MetricsPort, db, logger)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}
	bg.wait()

	logger.Info("Server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, host string, port int, db *database.DB, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	go metrics.StartStoreCollector(ctx, db, collectInterval)

	return srv
}

// backgroundSync runs one athlete sync plus a feature refresh per connect.
// Runs are serialized so two connects never write features concurrently.
type backgroundSync struct {
	ctx     context.Context
	syncer  *syncer.Syncer
	deriver *features.Deriver
	logger  *slog.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

func newBackgroundSync(ctx context.Context, s *syncer.Syncer, d *features.Deriver, logger *slog.Logger) *backgroundSync {
	return &backgroundSync{ctx: ctx, syncer: s, deriver: d, logger: logger}
}

func (b *backgroundSync) trigger(athleteID int64) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.ctx.Err() != nil {
			return
		}

		logger := b.logger.With("athlete_id", athleteID)
		summary, err := b.syncer.Run(b.ctx, syncer.ForAthlete(athleteID), syncer.Options{})
		if err != nil {
			logger.Error("Initial sync failed", "error", err)
			return
		}
		logger.Info("Initial sync finished", "upserted", summary.Upserted())

		if _, err := b.deriver.Run(b.ctx); err != nil {
			logger.Error("Feature refresh failed", "error", err)
		}
	}()
}

func (b *backgroundSync) wait() {
	b.wg.Wait()
}
