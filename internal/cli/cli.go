// Package cli provides the strava-training-load command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"strava-training-load/internal/config"
	"strava-training-load/internal/database"
)

var rootCmd = &cobra.Command{
	Use:   "strava-training-load",
	Short: "Strava activity ingestion and training-load features",
	Long: `Strava activity ingestion and training-load features

Pulls new activities from Strava for every connected athlete, keeps a
per-athlete cursor so each sync only fetches what is new, derives rolling
7-day and 28-day training-load features and predicts race pace from them.

Configuration is read from the environment, with .env and .env.local
loaded first when present.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// runtime holds what every command needs
type runtime struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger
	closer io.Closer
}

func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Error("Failed to close database", "error", err)
		}
	}
	if rt.closer != nil {
		rt.closer.Close()
	}
}

// setup loads the configuration, installs the default logger and opens the
// store. jsonLogs selects the JSON handler on stdout instead of text on stderr.
func setup(jsonLogs bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	stream := io.Writer(os.Stderr)
	if jsonLogs {
		stream = os.Stdout
	}
	logger, closer := newLogger(cfg, stream, jsonLogs)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		closeQuietly(closer)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Init(); err != nil {
		db.Close()
		closeQuietly(closer)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logger.Debug("Database opened", "postgres", db.Postgres())
	return &runtime{cfg: cfg, db: db, logger: logger, closer: closer}, nil
}

// newLogger builds the process logger. With LOG_FILE set, output also goes
// to a size-rotated file. The returned closer is nil without a log file.
func newLogger(cfg *config.Config, stream io.Writer, jsonLogs bool) (*slog.Logger, io.Closer) {
	out := stream
	var closer io.Closer
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:  cfg.LogFile,
			MaxSize:   50, // megabytes
			LocalTime: false,
			Compress:  true,
		}
		out = io.MultiWriter(stream, rotating)
		closer = rotating
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(out, opts)), closer
	}
	return slog.New(slog.NewTextHandler(out, opts)), closer
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}
