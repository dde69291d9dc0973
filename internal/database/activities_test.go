package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestUpsertActivityOverwritesInsteadOfDuplicating(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &Activity{
		ActivityID: 98765,
		AthleteID:  12345,
		Name:       strPtr("Morning Run"),
		StartDate:  int64Ptr(1050),
		DistanceM:  float64Ptr(5000),
		Raw:        `{"id":98765,"name":"Morning Run"}`,
		UpdatedAt:  100,
	}
	require.NoError(t, db.UpsertActivity(ctx, first))

	second := &Activity{
		ActivityID: 98765,
		AthleteID:  12345,
		Name:       strPtr("Renamed Run"),
		StartDate:  int64Ptr(1050),
		Raw:        `{"id":98765,"name":"Renamed Run"}`,
		UpdatedAt:  200,
	}
	require.NoError(t, db.UpsertActivity(ctx, second))

	n, err := db.CountActivities(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := db.GetActivity(ctx, 98765)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Renamed Run", *stored.Name)
	assert.Equal(t, `{"id":98765,"name":"Renamed Run"}`, stored.Raw)
	assert.Nil(t, stored.DistanceM, "fields missing from the new payload are cleared")
	assert.Equal(t, int64(100), stored.CreatedAt)
	assert.Equal(t, int64(200), stored.UpdatedAt)
}

func TestGetActivityMissing(t *testing.T) {
	db := setupTestDB(t)

	activity, err := db.GetActivity(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, activity)
}

func TestUpsertActivityRoundTripsOptionalFields(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	trainer := true

	require.NoError(t, db.UpsertActivity(ctx, &Activity{
		ActivityID:       1,
		AthleteID:        2,
		SportType:        strPtr("Ride"),
		StartDate:        int64Ptr(1700000000),
		Timezone:         strPtr("(GMT+00:00) Europe/London"),
		MovingTime:       int64Ptr(3600),
		AverageHeartrate: float64Ptr(142.5),
		Trainer:          &trainer,
		StartLat:         float64Ptr(51.5),
		StartLng:         float64Ptr(-0.12),
		Raw:              "{}",
	}))

	stored, err := db.GetActivity(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Ride", *stored.SportType)
	assert.Equal(t, int64(3600), *stored.MovingTime)
	assert.InDelta(t, 142.5, *stored.AverageHeartrate, 1e-9)
	require.NotNil(t, stored.Trainer)
	assert.True(t, *stored.Trainer)
	assert.Nil(t, stored.Commute)
	assert.InDelta(t, -0.12, *stored.StartLng, 1e-9)
}

func TestListActivitiesForFeatures(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	activities := []*Activity{
		{ActivityID: 5, AthleteID: 2, StartDate: int64Ptr(100), Raw: "{}"},
		{ActivityID: 4, AthleteID: 1, StartDate: int64Ptr(300), Raw: "{}"},
		{ActivityID: 3, AthleteID: 1, StartDate: int64Ptr(100), Raw: "{}"},
		{ActivityID: 2, AthleteID: 1, StartDate: int64Ptr(100), Raw: "{}"},
		{ActivityID: 1, AthleteID: 1, Raw: "{}"},
	}
	for _, a := range activities {
		require.NoError(t, db.UpsertActivity(ctx, a))
	}

	listed, err := db.ListActivitiesForFeatures(ctx)
	require.NoError(t, err)

	var ids []int64
	for _, a := range listed {
		ids = append(ids, a.ActivityID)
	}
	assert.Equal(t, []int64{2, 3, 4, 5}, ids)

	n, err := db.CountActivities(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
