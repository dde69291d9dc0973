package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-training-load/internal/config"
	"strava-training-load/internal/syncer"
)

func TestRootCmd_Structure(t *testing.T) {
	assert.Equal(t, "strava-training-load", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"sync", "features", "predict", "serve"} {
		assert.Contains(t, names, want)
	}
}

func TestSyncCmd_Flags(t *testing.T) {
	for _, name := range []string{"athlete-id", "all", "per-page", "after-default", "derive-features"} {
		assert.NotNil(t, syncCmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestSyncCmd_AthleteAndAllAreExclusive(t *testing.T) {
	t.Cleanup(func() { syncFlags.athleteID, syncFlags.all = 0, false })

	rootCmd.SetArgs([]string{"sync", "--athlete-id", "7", "--all"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others")
}

func TestPredictCmd_SaveNeedsAthlete(t *testing.T) {
	t.Cleanup(func() { predictFlags.save, predictFlags.scenario.DistanceKm = false, 0 })

	rootCmd.SetArgs([]string{"predict", "--distance-km", "10", "--save"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--save requires --athlete-id")
}

func TestSelectorFor(t *testing.T) {
	bootstrap := &config.Config{StravaRefreshToken: "rt", StravaAthleteID: 42}
	empty := &config.Config{}

	tests := []struct {
		name      string
		cfg       *config.Config
		athleteID int64
		all       bool
		want      syncer.Selector
		wantErr   bool
	}{
		{name: "all wins over env token", cfg: bootstrap, all: true, want: syncer.ForAll()},
		{name: "explicit athlete", cfg: bootstrap, athleteID: 7, want: syncer.ForAthlete(7)},
		{name: "env refresh token", cfg: bootstrap, want: syncer.ForRefreshToken("rt", 42)},
		{name: "nothing selected", cfg: empty, wantErr: true},
		{name: "negative athlete", cfg: empty, athleteID: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectorFor(tt.cfg, tt.athleteID, tt.all)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_WritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	var stream bytes.Buffer

	logger, closer := newLogger(&config.Config{LogLevel: "info", LogFile: path}, &stream, true)
	require.NotNil(t, closer)

	logger.Debug("hidden")
	logger.Info("Sync finished", "athlete_id", 7)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Sync finished"`)
	assert.Contains(t, string(data), `"athlete_id":7`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, string(data), stream.String())
}

func TestNewLogger_WithoutLogFile(t *testing.T) {
	var stream bytes.Buffer

	logger, closer := newLogger(&config.Config{LogLevel: "debug"}, &stream, false)
	assert.Nil(t, closer)

	logger.Debug("Fetched page", "page", 2)
	assert.Contains(t, stream.String(), "msg=\"Fetched page\" page=2")
}
