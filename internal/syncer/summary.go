package syncer

import (
	"time"

	"go.uber.org/multierr"
)

type selectorMode int

const (
	modeNone selectorMode = iota
	modeAthlete
	modeRefreshToken
	modeAll
)

// Selector picks which athletes a run covers
type Selector struct {
	mode         selectorMode
	athleteID    int64
	refreshToken string
	hint         int64
}

// ForAthlete syncs one athlete using the refresh token stored for it
func ForAthlete(athleteID int64) Selector {
	return Selector{mode: modeAthlete, athleteID: athleteID}
}

// ForRefreshToken syncs the athlete owning refreshToken. The athlete id is
// learned from Strava; a different hint is only logged.
func ForRefreshToken(refreshToken string, hint int64) Selector {
	return Selector{mode: modeRefreshToken, refreshToken: refreshToken, hint: hint}
}

// ForAll syncs every athlete with a stored refresh token
func ForAll() Selector {
	return Selector{mode: modeAll}
}

// AthleteResult is the outcome for one athlete
type AthleteResult struct {
	AthleteID    int64
	Hint         int64
	CursorBefore int64
	CursorAfter  int64
	Advanced     bool
	Retrieved    int
	Upserted     int
	Rotated      bool
	ExpiresAt    int64
	Scope        string
	Err          error
}

// Summary aggregates a run
type Summary struct {
	Results  []AthleteResult
	Duration time.Duration
}

// Retrieved is the number of records fetched across all athletes
func (s *Summary) Retrieved() int {
	n := 0
	for _, r := range s.Results {
		n += r.Retrieved
	}
	return n
}

// Upserted is the number of activities written across all athletes
func (s *Summary) Upserted() int {
	n := 0
	for _, r := range s.Results {
		n += r.Upserted
	}
	return n
}

// Succeeded is the number of athletes that synced without error
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed is the number of athletes whose sync returned an error
func (s *Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Err combines every athlete failure, or returns nil when all succeeded
func (s *Summary) Err() error {
	var err error
	for _, r := range s.Results {
		err = multierr.Append(err, r.Err)
	}
	return err
}
