package predict

import (
	"fmt"
	"math"
)

// Scenario describes a hypothetical race and the training load leading up to it
type Scenario struct {
	DistanceKm     float64 `json:"distance_km"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	Dist7dKm       float64 `json:"dist_7d_km"`
	Elev7dM        float64 `json:"elev_7d_m"`
	Time7dH        float64 `json:"time_7d_h"`
	Dist28dKm      float64 `json:"dist_28d_km"`
	Elev28dM       float64 `json:"elev_28d_m"`
	Time28dH       float64 `json:"time_28d_h"`
}

// Validate rejects scenarios the model cannot price
func (s Scenario) Validate() error {
	if s.DistanceKm <= 0 {
		return fmt.Errorf("distance_km must be positive, got %g", s.DistanceKm)
	}
	for name, v := range map[string]float64{
		"elevation_gain_m": s.ElevationGainM,
		"dist_7d_km":       s.Dist7dKm,
		"elev_7d_m":        s.Elev7dM,
		"time_7d_h":        s.Time7dH,
		"dist_28d_km":      s.Dist28dKm,
		"elev_28d_m":       s.Elev28dM,
		"time_28d_h":       s.Time28dH,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a non-negative number", name)
		}
	}
	return nil
}

// BuildInput converts a scenario to the model's input vector. Ratios whose
// 28-day denominator is zero become 0.
func BuildInput(s Scenario) []float64 {
	distM := s.DistanceKm * 1000
	dist7dM := s.Dist7dKm * 1000
	dist28dM := s.Dist28dKm * 1000
	time7dS := s.Time7dH * 3600
	time28dS := s.Time28dH * 3600

	return []float64{
		distM,
		s.ElevationGainM,
		dist7dM,
		s.Elev7dM,
		time7dS,
		dist28dM,
		s.Elev28dM,
		time28dS,
		ratio(s.ElevationGainM, distM),
		ratio(dist7dM, dist28dM),
		ratio(s.Elev7dM, s.Elev28dM),
		ratio(time7dS, time28dS),
		math.Log(distM + 1),
		math.Log(s.ElevationGainM + 1),
	}
}

// Inputs returns the scenario's input vector keyed by feature name
func Inputs(s Scenario) map[string]float64 {
	x := BuildInput(s)
	out := make(map[string]float64, len(x))
	for i, name := range FeatureNames {
		out[name] = x[i]
	}
	return out
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// Result is a predicted pace and the finish time it implies
type Result struct {
	PaceSPerKm float64 `json:"pace_s_per_km"`
	TimeS      float64 `json:"time_s"`
}

// Predict prices a scenario. Pace is floored at one second per km.
func (m *Model) Predict(s Scenario) Result {
	pace := math.Max(m.predict(BuildInput(s)), 1)
	return Result{PaceSPerKm: pace, TimeS: pace * s.DistanceKm}
}

// FormatSeconds renders h:mm:ss, or m:ss under an hour. Negative values
// render as 0:00.
func FormatSeconds(seconds float64) string {
	total := int64(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
