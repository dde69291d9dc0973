package predict

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-training-load/internal/database"
)

func float64Ptr(v float64) *float64 { return &v }

// syntheticRows builds rows whose pace is an exact linear function of the
// model inputs
func syntheticRows(n int, seed int64) []*database.Feature {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]*database.Feature, 0, n)
	for i := 0; i < n; i++ {
		dist := 3000 + rng.Float64()*40000
		elev := rng.Float64() * 2000
		f := &database.Feature{
			ActivityID:     int64(i + 1),
			AthleteID:      1,
			StartDate:      int64(i) * 86400,
			DistanceM:      float64Ptr(dist),
			ElevationGainM: float64Ptr(elev),
			Dist7dM:        10000 + rng.Float64()*60000,
			Elev7dM:        100 + rng.Float64()*3000,
			Time7dS:        3600 + rng.Float64()*30000,
			Dist28dM:       80000 + rng.Float64()*200000,
			Elev28dM:       3500 + rng.Float64()*10000,
			Time28dS:       40000 + rng.Float64()*100000,
		}
		pace := 240 + 0.002*dist + 40*(elev/dist) - 0.0003*f.Dist28dM + 15*(f.Time7dS/f.Time28dS)
		f.PaceSPerKm = float64Ptr(pace)
		rows = append(rows, f)
	}
	return rows
}

func TestTrainRecoversLinearRelation(t *testing.T) {
	model, err := Train(syntheticRows(200, 1), 1e-9)
	require.NoError(t, err)

	assert.Equal(t, ModelVersion, model.Version)
	assert.Equal(t, 160, model.TrainRows)
	assert.Equal(t, 40, model.TestRows)
	assert.Less(t, model.MAE, 0.05)
	assert.Less(t, model.RMSE, 0.05)
}

func TestTrainSplitsByStartTime(t *testing.T) {
	rows := syntheticRows(100, 2)
	// Shuffle; the held-out tail must still be the newest rows
	rand.New(rand.NewSource(3)).Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	model, err := Train(rows, DefaultRidge)
	require.NoError(t, err)
	assert.Equal(t, 80, model.TrainRows)
	assert.Equal(t, 20, model.TestRows)
}

func TestTrainSkipsRowsWithUndefinedInputs(t *testing.T) {
	rows := syntheticRows(MinTrainingRows-1, 4)
	rows = append(rows,
		&database.Feature{ActivityID: 1000, PaceSPerKm: float64Ptr(300), DistanceM: float64Ptr(5000), ElevationGainM: float64Ptr(10)},
		&database.Feature{ActivityID: 1001, DistanceM: float64Ptr(5000), ElevationGainM: float64Ptr(10), Dist28dM: 1, Elev28dM: 1, Time28dS: 1},
	)

	_, err := Train(rows, DefaultRidge)
	assert.True(t, errors.Is(err, ErrNotEnoughData))
}

func TestTrainingVectorRequiresDefinedRatios(t *testing.T) {
	f := syntheticRows(1, 5)[0]
	x, ok := TrainingVector(f)
	require.True(t, ok)
	require.Len(t, x, len(FeatureNames))
	assert.InDelta(t, *f.ElevationGainM / *f.DistanceM, x[8], 1e-12)
	assert.InDelta(t, math.Log(*f.DistanceM+1), x[12], 1e-12)

	f.Elev28dM = 0
	_, ok = TrainingVector(f)
	assert.False(t, ok)
}

func TestBuildInput(t *testing.T) {
	x := BuildInput(Scenario{
		DistanceKm:     10,
		ElevationGainM: 200,
		Dist7dKm:       30,
		Elev7dM:        600,
		Time7dH:        3,
		Dist28dKm:      120,
		Elev28dM:       2400,
		Time28dH:       12,
	})
	require.Len(t, x, len(FeatureNames))

	assert.Equal(t, 10000.0, x[0])
	assert.Equal(t, 30000.0, x[2])
	assert.Equal(t, 10800.0, x[4])
	assert.Equal(t, 43200.0, x[7])
	assert.InDelta(t, 0.02, x[8], 1e-12)
	assert.InDelta(t, 0.25, x[9], 1e-12)
	assert.InDelta(t, 0.25, x[10], 1e-12)
	assert.InDelta(t, 0.25, x[11], 1e-12)
	assert.InDelta(t, math.Log(10001), x[12], 1e-12)
	assert.InDelta(t, math.Log(201), x[13], 1e-12)
}

func TestBuildInputWithoutTrainingHistory(t *testing.T) {
	x := BuildInput(Scenario{DistanceKm: 5})
	assert.Zero(t, x[9])
	assert.Zero(t, x[10])
	assert.Zero(t, x[11])
	assert.Zero(t, x[13])
}

func TestScenarioValidate(t *testing.T) {
	assert.NoError(t, Scenario{DistanceKm: 5}.Validate())
	assert.Error(t, Scenario{}.Validate())
	assert.Error(t, Scenario{DistanceKm: 5, Time7dH: -1}.Validate())
	assert.Error(t, Scenario{DistanceKm: 5, Elev28dM: math.NaN()}.Validate())
}

func TestFormatSeconds(t *testing.T) {
	cases := map[float64]string{
		0:     "0:00",
		59.6:  "1:00",
		754:   "12:34",
		3599:  "59:59",
		3600:  "1:00:00",
		3723:  "1:02:03",
		45296: "12:34:56",
		-12.0: "0:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatSeconds(in), "FormatSeconds(%v)", in)
	}
}

func TestPredictTimeFollowsPace(t *testing.T) {
	model, err := Train(syntheticRows(100, 6), 1e-9)
	require.NoError(t, err)

	result := model.Predict(Scenario{DistanceKm: 10, ElevationGainM: 100, Dist7dKm: 40, Elev7dM: 800, Time7dH: 4, Dist28dKm: 150, Elev28dM: 5000, Time28dH: 16})
	expected := 240 + 0.002*10000 + 40*(100.0/10000) - 0.0003*150000 + 15*(4.0/16)
	assert.InDelta(t, expected, result.PaceSPerKm, 0.5)
	assert.InDelta(t, result.PaceSPerKm*10, result.TimeS, 1e-9)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

func TestPredictorSavesPrediction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for _, f := range syntheticRows(60, 7) {
		require.NoError(t, db.UpsertFeature(ctx, f))
	}

	p := NewPredictor(db, nil)
	pred, model, err := p.Predict(ctx, 1, Scenario{DistanceKm: 21.1, ElevationGainM: 300, Dist7dKm: 40, Dist28dKm: 160}, true)
	require.NoError(t, err)
	assert.Equal(t, 48, model.TrainRows)
	assert.NotEmpty(t, pred.PredictionID)
	assert.InDelta(t, 21100.0, pred.DistanceM, 1e-9)

	var inputs map[string]float64
	require.NoError(t, json.Unmarshal([]byte(pred.Features), &inputs))
	assert.Len(t, inputs, len(FeatureNames))
	assert.InDelta(t, 0.25, inputs["charge_ratio_dist_7_28"], 1e-12)

	saved, err := db.ListPredictions(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, pred.PredictionID, saved[0].PredictionID)
	assert.Equal(t, PredictionType, saved[0].PredictionType)
	assert.Equal(t, ModelVersion, saved[0].ModelVersion)
}

func TestPredictorWithoutSaving(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	for _, f := range syntheticRows(30, 8) {
		require.NoError(t, db.UpsertFeature(ctx, f))
	}

	_, _, err := NewPredictor(db, nil).Predict(ctx, 1, Scenario{DistanceKm: 10}, false)
	require.NoError(t, err)

	saved, err := db.ListPredictions(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPredictorNeedsData(t *testing.T) {
	db := setupTestDB(t)

	_, _, err := NewPredictor(db, nil).Predict(context.Background(), 1, Scenario{DistanceKm: 10}, false)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}
