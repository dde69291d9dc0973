package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndListPredictions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	db.SetClock(func() time.Time { return time.Unix(100, 0) })
	older := &Prediction{
		AthleteID: 5, PredictionType: "pace", ModelVersion: "ols-v1",
		DistanceM: 10000, ElevationGainM: 50, PredictedPaceSPerKm: 300, PredictedTimeS: 3000,
		Features: `{"distance_m":10000}`,
	}
	require.NoError(t, db.InsertPrediction(ctx, older))
	_, err := uuid.Parse(older.PredictionID)
	require.NoError(t, err)

	db.SetClock(func() time.Time { return time.Unix(200, 0) })
	newer := &Prediction{
		AthleteID: 5, PredictionType: "pace", ModelVersion: "ols-v1",
		DistanceM: 5000, PredictedPaceSPerKm: 280, PredictedTimeS: 1400, Features: "{}",
	}
	require.NoError(t, db.InsertPrediction(ctx, newer))
	require.NoError(t, db.InsertPrediction(ctx, &Prediction{AthleteID: 6, PredictionType: "pace", ModelVersion: "ols-v1", Features: "{}"}))

	listed, err := db.ListPredictions(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, newer.PredictionID, listed[0].PredictionID)
	assert.Equal(t, older.PredictionID, listed[1].PredictionID)
	assert.Equal(t, `{"distance_m":10000}`, listed[1].Features)

	limited, err := db.ListPredictions(ctx, 5, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
