package predict

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"strava-training-load/internal/database"
)

const (
	ModelVersion   = "ols-ridge-v1"
	PredictionType = "race_time"

	// DefaultRidge keeps the normal equations solvable when inputs are collinear
	DefaultRidge = 1e-3

	trainFraction = 0.8
)

// FeatureNames lists the model inputs in vector order
var FeatureNames = []string{
	"distance_m",
	"elevation_gain_m",
	"dist_7d_m",
	"elev_7d_m",
	"time_7d_s",
	"dist_28d_m",
	"elev_28d_m",
	"time_28d_s",
	"elev_density_m_per_m",
	"charge_ratio_dist_7_28",
	"charge_ratio_elev_7_28",
	"charge_ratio_time_7_28",
	"log_distance_m",
	"log_elev_gain_m",
}

// MinTrainingRows is the smallest number of usable rows Train accepts
var MinTrainingRows = len(FeatureNames) + 2

var ErrNotEnoughData = errors.New("not enough feature rows to train a model")

// Model is a linear model on standardized inputs predicting pace in s/km
type Model struct {
	Version   string
	Means     []float64
	Scales    []float64
	Weights   []float64
	Intercept float64

	TrainRows int
	TestRows  int
	// MAE and RMSE on the held-out rows, in s/km. Zero when there are none.
	MAE  float64
	RMSE float64
}

type sample struct {
	start int64
	x     []float64
	y     float64
}

// TrainingVector builds the model inputs for a stored feature row. ok is false
// when the row has no target or any input is undefined.
func TrainingVector(f *database.Feature) (x []float64, ok bool) {
	if f.PaceSPerKm == nil || f.DistanceM == nil || f.ElevationGainM == nil {
		return nil, false
	}
	dist, elev := *f.DistanceM, *f.ElevationGainM
	if dist <= 0 || f.Dist28dM <= 0 || f.Elev28dM <= 0 || f.Time28dS <= 0 {
		return nil, false
	}

	return []float64{
		dist,
		elev,
		f.Dist7dM,
		f.Elev7dM,
		f.Time7dS,
		f.Dist28dM,
		f.Elev28dM,
		f.Time28dS,
		elev / dist,
		f.Dist7dM / f.Dist28dM,
		f.Elev7dM / f.Elev28dM,
		f.Time7dS / f.Time28dS,
		math.Log(dist + 1),
		math.Log(math.Max(elev, 0) + 1),
	}, true
}

// Train fits a model on rows ordered by start time. The oldest 80% are used
// for fitting and the rest for MAE/RMSE.
func Train(rows []*database.Feature, ridge float64) (*Model, error) {
	var samples []sample
	for _, f := range rows {
		if x, ok := TrainingVector(f); ok {
			samples = append(samples, sample{start: f.StartDate, x: x, y: *f.PaceSPerKm})
		}
	}
	if len(samples) < MinTrainingRows {
		return nil, fmt.Errorf("%w: have %d usable rows, need %d", ErrNotEnoughData, len(samples), MinTrainingRows)
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].start < samples[j].start })

	split := int(float64(len(samples)) * trainFraction)
	if split < MinTrainingRows {
		split = MinTrainingRows
	}
	train, test := samples[:split], samples[split:]

	m, err := fit(train, ridge)
	if err != nil {
		return nil, err
	}
	m.TrainRows = len(train)
	m.TestRows = len(test)

	if len(test) > 0 {
		var absSum, sqSum float64
		for _, s := range test {
			diff := m.predict(s.x) - s.y
			absSum += math.Abs(diff)
			sqSum += diff * diff
		}
		m.MAE = absSum / float64(len(test))
		m.RMSE = math.Sqrt(sqSum / float64(len(test)))
	}
	return m, nil
}

func fit(samples []sample, ridge float64) (*Model, error) {
	k := len(FeatureNames)
	n := float64(len(samples))

	m := &Model{
		Version: ModelVersion,
		Means:   make([]float64, k),
		Scales:  make([]float64, k),
		Weights: make([]float64, k),
	}

	for _, s := range samples {
		for j, v := range s.x {
			m.Means[j] += v
		}
		m.Intercept += s.y
	}
	for j := range m.Means {
		m.Means[j] /= n
	}
	m.Intercept /= n

	for _, s := range samples {
		for j, v := range s.x {
			d := v - m.Means[j]
			m.Scales[j] += d * d
		}
	}
	for j := range m.Scales {
		m.Scales[j] = math.Sqrt(m.Scales[j] / n)
		if m.Scales[j] == 0 {
			m.Scales[j] = 1
		}
	}

	// Normal equations (ZᵀZ + λI) w = Zᵀ(y - ȳ) on standardized Z
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	z := make([]float64, k)
	for _, s := range samples {
		for j, v := range s.x {
			z[j] = (v - m.Means[j]) / m.Scales[j]
		}
		yc := s.y - m.Intercept
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += z[i] * z[j]
			}
			a[i][k] += z[i] * yc
		}
	}
	for i := 0; i < k; i++ {
		a[i][i] += ridge * n
	}

	w, err := solve(a)
	if err != nil {
		return nil, err
	}
	m.Weights = w
	return m, nil
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// k x (k+1) matrix
func solve(a [][]float64) ([]float64, error) {
	k := len(a)
	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system: training inputs are degenerate")
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := col + 1; r < k; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	x := make([]float64, k)
	for r := k - 1; r >= 0; r-- {
		sum := a[r][k]
		for c := r + 1; c < k; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

func (m *Model) predict(x []float64) float64 {
	y := m.Intercept
	for j, v := range x {
		y += m.Weights[j] * (v - m.Means[j]) / m.Scales[j]
	}
	return y
}
