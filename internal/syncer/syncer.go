package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"strava-training-load/internal/config"
	"strava-training-load/internal/database"
	"strava-training-load/internal/ingest"
	"strava-training-load/internal/metrics"
	"strava-training-load/internal/strava"
)

// ErrNoAthletes is returned by an all-athletes run when no athlete has a
// stored refresh token
var ErrNoAthletes = errors.New("no athletes with a stored refresh token")

// Provider is the part of the Strava client a sync needs
type Provider interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenSet, error)
	GetAthlete(ctx context.Context, accessToken string) (*strava.AthleteProfile, error)
	ListActivitiesSince(ctx context.Context, accessToken string, after int64, perPage int) ([]json.RawMessage, error)
}

// Options override config values for a single run. Zero values fall back
// to the config.
type Options struct {
	PerPage      int
	AfterDefault *int64
}

// Syncer pulls new activities from Strava into the store, one athlete at a time
type Syncer struct {
	db       *database.DB
	provider Provider
	config   *config.Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Syncer
func New(db *database.DB, provider Provider, cfg *config.Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		db:       db,
		provider: provider,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for activity updated_at stamps
func (s *Syncer) SetClock(now func() time.Time) {
	s.now = now
}

// Run syncs the athletes picked by sel. Single-athlete runs return the
// athlete's error. All-athlete runs keep going past failures and return a nil
// error; use Summary.Err to see whether any athlete failed.
//
// Each athlete commits twice: the profile and refreshed token first, then
// the activities together with the cursor. A failure after the first commit
// keeps the new token but leaves activities and cursor untouched.
func (s *Syncer) Run(ctx context.Context, sel Selector, opts Options) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	defer func() {
		summary.Duration = time.Since(start)
		metrics.SyncRunDuration.Observe(summary.Duration.Seconds())
	}()

	switch sel.mode {
	case modeAthlete:
		token, err := s.db.GetToken(ctx, sel.athleteID)
		if err != nil {
			return summary, err
		}
		if token == nil || token.RefreshToken == "" {
			return summary, fmt.Errorf("no stored refresh token for athlete %d", sel.athleteID)
		}
		result := s.syncAthlete(ctx, sel.athleteID, token.RefreshToken, 0, opts)
		summary.Results = append(summary.Results, result)
		return summary, result.Err

	case modeRefreshToken:
		if sel.refreshToken == "" {
			return summary, errors.New("no refresh token supplied")
		}
		result := s.syncAthlete(ctx, 0, sel.refreshToken, sel.hint, opts)
		summary.Results = append(summary.Results, result)
		return summary, result.Err

	case modeAll:
		tokens, err := s.db.ListAthletesWithRefreshToken(ctx)
		if err != nil {
			return summary, err
		}
		if len(tokens) == 0 {
			return summary, ErrNoAthletes
		}

		s.logger.Info("Syncing all athletes", "count", len(tokens))
		for _, token := range tokens {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			result := s.syncAthlete(ctx, token.AthleteID, token.RefreshToken, 0, opts)
			summary.Results = append(summary.Results, result)
		}
		s.logger.Info("Sync finished",
			"succeeded", summary.Succeeded(),
			"failed", summary.Failed(),
			"retrieved", summary.Retrieved(),
			"upserted", summary.Upserted())
		return summary, nil

	default:
		return summary, errors.New("no athlete selector given")
	}
}

// syncAthlete runs one athlete end to end. knownID is 0 in bootstrap mode,
// where the id comes from the provider.
func (s *Syncer) syncAthlete(ctx context.Context, knownID int64, refreshToken string, hint int64, opts Options) (result AthleteResult) {
	result = AthleteResult{AthleteID: knownID, Hint: hint}
	logger := s.logger.With("athlete_id", knownID)

	defer func() {
		if result.Err != nil {
			if result.AthleteID != 0 {
				result.Err = fmt.Errorf("athlete %d: %w", result.AthleteID, result.Err)
			} else {
				result.Err = fmt.Errorf("bootstrap athlete: %w", result.Err)
			}
			logger.Error("Athlete sync failed", "error", result.Err)
			metrics.SyncAthletesTotal.WithLabelValues(metrics.ResultFailure).Inc()
			return
		}
		metrics.SyncAthletesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	}()

	// 1. Refresh the access token
	set, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		result.Err = err
		return result
	}
	if set.RefreshToken == "" {
		set.RefreshToken = refreshToken
	}
	result.ExpiresAt = set.ExpiresAt
	result.Scope = set.Scope
	if set.RefreshToken != refreshToken {
		result.Rotated = true
		metrics.SyncTokenRotationsTotal.Inc()
		logger.Warn("Strava rotated the refresh token; the previous one is no longer valid")
	}

	// 2. Identify the athlete and persist profile + token before fetching, so
	// a later failure cannot lose a rotated refresh token
	profile, err := s.provider.GetAthlete(ctx, set.AccessToken)
	if err != nil {
		if knownID != 0 {
			if storeErr := s.storeToken(ctx, knownID, set); storeErr != nil {
				logger.Error("Failed to store refreshed token", "error", storeErr)
			}
		} else if result.Rotated {
			logger.Error("Refresh token was rotated but the athlete could not be identified; the new token was not stored",
				"refresh_token", config.MaskSecret(set.RefreshToken))
		}
		result.Err = err
		return result
	}

	athleteID := profile.ID
	switch {
	case knownID != 0 && athleteID != knownID:
		// The refresh already consumed the stored credential; keep the row
		// it came from usable
		if storeErr := s.storeToken(ctx, knownID, set); storeErr != nil {
			logger.Error("Failed to store refreshed token", "error", storeErr)
		}
		result.Err = &strava.ProtocolError{
			Detail: fmt.Sprintf("stored token for athlete %d belongs to athlete %d", knownID, athleteID),
		}
		return result
	case hint != 0 && athleteID != hint:
		logger.Warn("Athlete id from Strava differs from the configured hint",
			"hint", hint, "strava_athlete_id", athleteID)
	}
	result.AthleteID = athleteID
	logger = s.logger.With("athlete_id", athleteID)

	err = s.db.WithTx(ctx, func(tx *database.DB) error {
		if err := tx.UpsertAthlete(ctx, athleteRow(profile)); err != nil {
			return err
		}
		return tx.UpsertToken(ctx, tokenRow(athleteID, set))
	})
	if err != nil {
		result.Err = err
		return result
	}

	// 3. Read the cursor
	after, ok, err := s.db.GetCursor(ctx, athleteID, database.SourceStrava, database.KeyAfterEpoch)
	if err != nil {
		result.Err = err
		return result
	}
	if !ok {
		after = s.afterDefault(opts)
	}
	result.CursorBefore = after
	result.CursorAfter = after

	// 4. Fetch everything after the cursor
	perPage := s.perPage(opts)
	logger.Info("Fetching activities", "after", after, "per_page", perPage)
	records, err := s.provider.ListActivitiesSince(ctx, set.AccessToken, after, perPage)
	if err != nil {
		result.Err = err
		return result
	}
	result.Retrieved = len(records)
	metrics.SyncActivitiesRetrievedTotal.Add(float64(len(records)))
	metrics.SyncAthleteActivitiesCount.Observe(float64(len(records)))

	// 5 + 6. Upsert and advance the cursor in one transaction
	margin := int64(s.config.CursorMargin / time.Second)
	var batch ingest.BatchResult
	var advanceTo *int64
	err = s.db.WithTx(ctx, func(tx *database.DB) error {
		writer := ingest.NewWriter(tx, logger)
		writer.SetClock(s.now)

		var err error
		batch, err = writer.UpsertBatch(ctx, athleteID, records)
		if err != nil {
			return err
		}

		advanceTo = nextCursor(after, batch.MaxEpoch, margin)
		if advanceTo == nil {
			return nil
		}
		return tx.SetCursor(ctx, athleteID, database.SourceStrava, database.KeyAfterEpoch, *advanceTo)
	})
	if err != nil {
		result.Err = err
		return result
	}

	result.Upserted = batch.Upserted
	metrics.SyncActivitiesUpsertedTotal.Add(float64(batch.Upserted))
	if advanceTo != nil {
		result.CursorAfter = *advanceTo
		result.Advanced = true
		metrics.SyncCursorAdvancesTotal.Inc()
	}

	logger.Info("Athlete synced",
		"retrieved", result.Retrieved,
		"upserted", result.Upserted,
		"cursor_before", result.CursorBefore,
		"cursor_after", result.CursorAfter)
	return result
}

// nextCursor returns the cursor to store after a batch, or nil to keep the
// current one. The cursor only moves forward.
func nextCursor(after int64, maxEpoch *int64, margin int64) *int64 {
	if maxEpoch == nil || *maxEpoch <= after {
		return nil
	}
	candidate := *maxEpoch - margin
	if candidate <= after {
		return nil
	}
	return &candidate
}

func (s *Syncer) storeToken(ctx context.Context, athleteID int64, set *strava.TokenSet) error {
	return s.db.UpsertToken(ctx, tokenRow(athleteID, set))
}

func (s *Syncer) perPage(opts Options) int {
	if opts.PerPage > 0 {
		return opts.PerPage
	}
	return s.config.PerPage
}

func (s *Syncer) afterDefault(opts Options) int64 {
	if opts.AfterDefault != nil {
		return *opts.AfterDefault
	}
	return s.config.AfterEpochDefault
}

func athleteRow(p *strava.AthleteProfile) *database.Athlete {
	a := &database.Athlete{
		AthleteID: p.ID,
		Firstname: optional(p.Firstname),
		Lastname:  optional(p.Lastname),
		City:      optional(p.City),
		Country:   optional(p.Country),
	}
	if len(p.Raw) > 0 {
		raw := string(p.Raw)
		a.Raw = &raw
	}
	return a
}

func tokenRow(athleteID int64, set *strava.TokenSet) *database.Token {
	return &database.Token{
		AthleteID:    athleteID,
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		ExpiresAt:    set.ExpiresAt,
		Scope:        optional(set.Scope),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
