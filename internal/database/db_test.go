package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Init())
	return db
}

func strPtr(s string) *string { return &s }

func TestOpenAndInitIsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	assert.False(t, db.Postgres())
	require.NoError(t, db.Health())
	require.NoError(t, db.Init())
}

func TestRebind(t *testing.T) {
	db := &DB{postgres: true}
	assert.Equal(t,
		"SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3",
		db.rebind("SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?"))

	db.postgres = false
	assert.Equal(t, "SELECT ? FROM t", db.rebind("SELECT ? FROM t"))
}

func TestWithTxCommits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *DB) error {
		if err := tx.UpsertAthlete(ctx, &Athlete{AthleteID: 1}); err != nil {
			return err
		}
		return tx.SetCursor(ctx, 1, SourceStrava, KeyAfterEpoch, 500)
	})
	require.NoError(t, err)

	athlete, err := db.GetAthlete(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, athlete)

	value, ok, err := db.GetCursor(ctx, 1, SourceStrava, KeyAfterEpoch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), value)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *DB) error {
		require.NoError(t, tx.UpsertAthlete(ctx, &Athlete{AthleteID: 2}))
		require.NoError(t, tx.UpsertActivity(ctx, &Activity{ActivityID: 20, AthleteID: 2, Raw: "{}"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	athlete, err := db.GetAthlete(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, athlete)

	n, err := db.CountActivities(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTxNestedJoinsOuter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *DB) error {
		require.NoError(t, tx.WithTx(ctx, func(inner *DB) error {
			return inner.UpsertAthlete(ctx, &Athlete{AthleteID: 3})
		}))
		return errors.New("outer failure")
	})
	require.Error(t, err)

	athlete, err := db.GetAthlete(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, athlete, "inner write must roll back with the outer transaction")
}

func TestStorageErrorUnwraps(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	_, err := db.GetAthlete(context.Background(), 1)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "get athlete", storageErr.Op)
}

func TestAthleteUpsertKeepsCreatedAt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	db.SetClock(func() time.Time { return time.Unix(1000, 0) })
	require.NoError(t, db.UpsertAthlete(ctx, &Athlete{AthleteID: 7, Firstname: strPtr("Ada")}))

	db.SetClock(func() time.Time { return time.Unix(2000, 0) })
	require.NoError(t, db.UpsertAthlete(ctx, &Athlete{AthleteID: 7, Firstname: strPtr("Ada"), City: strPtr("Leeds")}))

	athlete, err := db.GetAthlete(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, athlete)
	assert.Equal(t, int64(1000), athlete.CreatedAt)
	assert.Equal(t, int64(2000), athlete.UpdatedAt)
	assert.Equal(t, "Leeds", *athlete.City)

	n, err := db.CountAthletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
