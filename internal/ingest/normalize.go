package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"strava-training-load/internal/database"
	"strava-training-load/internal/strava"
)

// rawActivity mirrors the fields of a Strava SummaryActivity that are kept as
// columns. Every field is optional except id.
type rawActivity struct {
	ID                 *int64    `json:"id"`
	Name               *string   `json:"name"`
	SportType          *string   `json:"sport_type"`
	Type               *string   `json:"type"`
	StartDate          *string   `json:"start_date"`
	Timezone           *string   `json:"timezone"`
	ElapsedTime        *float64  `json:"elapsed_time"`
	MovingTime         *float64  `json:"moving_time"`
	Distance           *float64  `json:"distance"`
	TotalElevationGain *float64  `json:"total_elevation_gain"`
	AverageSpeed       *float64  `json:"average_speed"`
	MaxSpeed           *float64  `json:"max_speed"`
	AverageHeartrate   *float64  `json:"average_heartrate"`
	MaxHeartrate       *float64  `json:"max_heartrate"`
	AverageWatts       *float64  `json:"average_watts"`
	MaxWatts           *float64  `json:"max_watts"`
	AverageCadence     *float64  `json:"average_cadence"`
	Visibility         *string   `json:"visibility"`
	Trainer            *bool     `json:"trainer"`
	Commute            *bool     `json:"commute"`
	StartLatLng        []float64 `json:"start_latlng"`
}

// Normalize maps a raw Strava activity onto the activities table. The full
// payload is kept in Raw. A record that is not a JSON object, has no id or
// has a start_date without a timezone is a ProtocolError.
func Normalize(athleteID int64, raw json.RawMessage) (*database.Activity, error) {
	var r rawActivity
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &strava.ProtocolError{Detail: "activity is not a JSON object: " + err.Error()}
	}
	if r.ID == nil {
		return nil, &strava.ProtocolError{Detail: "activity without id"}
	}

	a := &database.Activity{
		ActivityID:          *r.ID,
		AthleteID:           athleteID,
		Name:                r.Name,
		SportType:           r.SportType,
		Timezone:            r.Timezone,
		ElapsedTime:         seconds(r.ElapsedTime),
		MovingTime:          seconds(r.MovingTime),
		DistanceM:           r.Distance,
		TotalElevationGainM: r.TotalElevationGain,
		AverageSpeedMPS:     r.AverageSpeed,
		MaxSpeedMPS:         r.MaxSpeed,
		AverageHeartrate:    r.AverageHeartrate,
		MaxHeartrate:        r.MaxHeartrate,
		AverageWatts:        r.AverageWatts,
		MaxWatts:            r.MaxWatts,
		AverageCadence:      r.AverageCadence,
		Visibility:          r.Visibility,
		Trainer:             r.Trainer,
		Commute:             r.Commute,
		Raw:                 string(raw),
	}

	if a.SportType == nil {
		a.SportType = r.Type
	}

	if r.StartDate != nil && *r.StartDate != "" {
		start, err := time.Parse(time.RFC3339, *r.StartDate)
		if err != nil {
			return nil, &strava.ProtocolError{
				Detail: fmt.Sprintf("activity %d start_date %q is not an RFC 3339 timestamp with zone", *r.ID, *r.StartDate),
			}
		}
		epoch := start.Unix()
		a.StartDate = &epoch
	}

	if len(r.StartLatLng) == 2 {
		lat, lng := r.StartLatLng[0], r.StartLatLng[1]
		a.StartLat = &lat
		a.StartLng = &lng
	}

	return a, nil
}

func seconds(v *float64) *int64 {
	if v == nil {
		return nil
	}
	s := int64(math.Round(*v))
	return &s
}
