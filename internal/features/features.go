package features

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"strava-training-load/internal/database"
	"strava-training-load/internal/metrics"
)

// Rolling window lengths in seconds
const (
	day      = int64(24 * 60 * 60)
	Window7  = 7 * day
	Window28 = 28 * day
)

// Derive computes one feature row per activity with a start time. Rolling
// sums cover the same athlete's activities starting in [start-N days, start],
// ties at start included. Activities without a start time are skipped.
func Derive(activities []*database.Activity, computedAt time.Time) []*database.Feature {
	sorted := make([]*database.Activity, 0, len(activities))
	for _, a := range activities {
		if a.StartDate != nil {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.AthleteID != b.AthleteID {
			return a.AthleteID < b.AthleteID
		}
		if *a.StartDate != *b.StartDate {
			return *a.StartDate < *b.StartDate
		}
		return a.ActivityID < b.ActivityID
	})

	out := make([]*database.Feature, 0, len(sorted))
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].AthleteID == sorted[start].AthleteID {
			end++
		}
		out = append(out, deriveAthlete(sorted[start:end], computedAt.Unix())...)
		start = end
	}
	return out
}

// deriveAthlete expects one athlete's activities sorted by start time
func deriveAthlete(acts []*database.Activity, updatedAt int64) []*database.Feature {
	n := len(acts)
	dist := make([]float64, n+1)
	elev := make([]float64, n+1)
	moving := make([]float64, n+1)
	for i, a := range acts {
		dist[i+1] = dist[i] + valueOrZero(a.DistanceM)
		elev[i+1] = elev[i] + valueOrZero(a.TotalElevationGainM)
		moving[i+1] = moving[i]
		if a.MovingTime != nil {
			moving[i+1] += float64(*a.MovingTime)
		}
	}

	sum := func(prefix []float64, lo, hi int) float64 {
		return prefix[hi] - prefix[lo]
	}

	out := make([]*database.Feature, n)
	lo7, lo28, hi := 0, 0, 0
	for i, a := range acts {
		t := *a.StartDate
		for hi < n && *acts[hi].StartDate <= t {
			hi++
		}
		for *acts[lo7].StartDate < t-Window7 {
			lo7++
		}
		for *acts[lo28].StartDate < t-Window28 {
			lo28++
		}

		f := rowFor(a)
		f.UpdatedAt = updatedAt
		f.Dist7dM = sum(dist, lo7, hi)
		f.Elev7dM = sum(elev, lo7, hi)
		f.Time7dS = sum(moving, lo7, hi)
		f.Dist28dM = sum(dist, lo28, hi)
		f.Elev28dM = sum(elev, lo28, hi)
		f.Time28dS = sum(moving, lo28, hi)
		out[i] = f
	}
	return out
}

// rowFor copies the per-activity measurements and derives the ratios
func rowFor(a *database.Activity) *database.Feature {
	f := &database.Feature{
		ActivityID:     a.ActivityID,
		AthleteID:      a.AthleteID,
		StartDate:      *a.StartDate,
		MovingTimeS:    a.MovingTime,
		DistanceM:      a.DistanceM,
		ElevationGainM: a.TotalElevationGainM,
		AvgHR:          a.AverageHeartrate,
		MaxHR:          a.MaxHeartrate,
		AvgWatts:       a.AverageWatts,
		MaxWatts:       a.MaxWatts,
	}

	if a.DistanceM != nil && *a.DistanceM > 0 {
		km := *a.DistanceM / 1000
		if a.MovingTime != nil {
			pace := float64(*a.MovingTime) / km
			f.PaceSPerKm = &pace
		}
		if a.TotalElevationGainM != nil {
			density := *a.TotalElevationGainM / km
			f.ElevMPerKm = &density
		}
	}

	if a.AverageHeartrate != nil && a.MovingTime != nil {
		load := *a.AverageHeartrate * float64(*a.MovingTime)
		f.HRxTime = &load
	}

	return f
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Deriver recomputes every feature row from the stored activities
type Deriver struct {
	db     *database.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewDeriver creates a Deriver
func NewDeriver(db *database.DB, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{db: db, logger: logger, now: time.Now}
}

// SetClock replaces the clock used for the computed-at stamp
func (d *Deriver) SetClock(now func() time.Time) {
	d.now = now
}

// Run recomputes and upserts all feature rows in one transaction and
// returns the number of rows written
func (d *Deriver) Run(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		metrics.FeatureRunDuration.Observe(time.Since(start).Seconds())
	}()

	var written int
	err := d.db.WithTx(ctx, func(tx *database.DB) error {
		activities, err := tx.ListActivitiesForFeatures(ctx)
		if err != nil {
			return err
		}

		rows := Derive(activities, d.now())
		for _, row := range rows {
			if err := tx.UpsertFeature(ctx, row); err != nil {
				return err
			}
		}
		written = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.FeatureRowsComputedTotal.Add(float64(written))
	d.logger.Info("Feature rows recomputed", "rows", written, "duration_ms", time.Since(start).Milliseconds())
	return written, nil
}
