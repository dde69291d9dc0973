package strava

import (
	"context"
	"encoding/json"

	"strava-training-load/internal/metrics"
)

// AthleteProfile is the subset of the Strava athlete object that is stored
// as columns. Raw keeps the full object.
type AthleteProfile struct {
	ID        int64           `json:"id"`
	Firstname string          `json:"firstname"`
	Lastname  string          `json:"lastname"`
	City      string          `json:"city"`
	Country   string          `json:"country"`
	Raw       json.RawMessage `json:"-"`
}

// GetAthlete fetches the profile of the athlete owning accessToken
func (c *Client) GetAthlete(ctx context.Context, accessToken string) (*AthleteProfile, error) {
	body, err := c.doGet(ctx, metrics.OpGetAthlete, c.apiClient, "/athlete", nil, accessToken)
	if err != nil {
		return nil, err
	}
	return decodeAthlete(body)
}

func decodeAthlete(data []byte) (*AthleteProfile, error) {
	var profile AthleteProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, &ProtocolError{Detail: "athlete is not a JSON object: " + err.Error()}
	}
	if profile.ID == 0 {
		return nil, &ProtocolError{Detail: "athlete without id"}
	}
	profile.Raw = json.RawMessage(data)
	return &profile, nil
}
