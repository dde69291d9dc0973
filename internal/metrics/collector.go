package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Store is the subset of the database used for row-count gauges
type Store interface {
	CountAthletes(ctx context.Context) (int64, error)
	CountActivities(ctx context.Context, athleteID int64) (int64, error)
	CountFeatures(ctx context.Context) (int64, error)
}

// StartStoreCollector periodically records table sizes until ctx is done
func StartStoreCollector(ctx context.Context, store Store, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	CollectStoreRows(ctx, store, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Store collector stopping")
			return
		case <-ticker.C:
			CollectStoreRows(ctx, store, logger)
		}
	}
}

// CollectStoreRows sets the store_rows gauge for each table
func CollectStoreRows(ctx context.Context, store Store, logger *slog.Logger) {
	if n, err := store.CountAthletes(ctx); err != nil {
		logger.Error("Failed to count athletes", "error", err)
	} else {
		StoreRows.WithLabelValues(TableAthletes).Set(float64(n))
	}

	if n, err := store.CountActivities(ctx, 0); err != nil {
		logger.Error("Failed to count activities", "error", err)
	} else {
		StoreRows.WithLabelValues(TableActivities).Set(float64(n))
	}

	if n, err := store.CountFeatures(ctx); err != nil {
		logger.Error("Failed to count feature rows", "error", err)
	} else {
		StoreRows.WithLabelValues(TableFeatures).Set(float64(n))
	}
}
