package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"strava-training-load/internal/database"
	"strava-training-load/internal/strava"
)

const stateTTL = 10 * time.Minute

// ErrInvalidState is returned for an unknown, reused or expired state
var ErrInvalidState = errors.New("invalid or expired state")

// Exchanger is the part of the Strava client the connect flow needs
type Exchanger interface {
	AuthCodeURL(state, redirectURL string) string
	ExchangeCode(ctx context.Context, code string) (*strava.TokenSet, error)
}

// Manager handles the OAuth 2.0 connect flow with Strava
type Manager struct {
	db        *database.DB
	exchanger Exchanger
	logger    *slog.Logger
	states    *stateStore // CSRF protection
	onConnect func(athleteID int64)
}

// stateStore tracks valid OAuth states for CSRF protection
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewManager creates a new OAuth manager
func NewManager(db *database.DB, exchanger Exchanger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:        db,
		exchanger: exchanger,
		logger:    logger,
		states: &stateStore{
			states: make(map[string]time.Time),
			now:    time.Now,
		},
	}
}

// OnConnect registers a callback run after an athlete's tokens are stored
func (m *Manager) OnConnect(fn func(athleteID int64)) {
	m.onConnect = fn
}

// StartCleanup removes expired states every minute until ctx is done
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.states.sweep()
			}
		}
	}()
}

// AuthURL returns a Strava authorization URL and the state it carries
func (m *Manager) AuthURL(redirectURI string) (string, string, error) {
	state, err := generateRandomState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	m.states.add(state)

	return m.exchanger.AuthCodeURL(state, redirectURI), state, nil
}

// HandleCallback validates the state, exchanges the code and stores the
// athlete with its tokens. It returns the athlete id.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) (int64, error) {
	if !m.states.consume(state) {
		return 0, ErrInvalidState
	}

	set, err := m.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("failed to exchange code: %w", err)
	}
	if set.Athlete == nil {
		return 0, &strava.ProtocolError{Detail: "code exchange response without athlete"}
	}
	athleteID := set.Athlete.ID

	err = m.db.WithTx(ctx, func(tx *database.DB) error {
		athlete := &database.Athlete{AthleteID: athleteID}
		if set.Athlete.Firstname != "" {
			athlete.Firstname = &set.Athlete.Firstname
		}
		if set.Athlete.Lastname != "" {
			athlete.Lastname = &set.Athlete.Lastname
		}
		if set.Athlete.City != "" {
			athlete.City = &set.Athlete.City
		}
		if set.Athlete.Country != "" {
			athlete.Country = &set.Athlete.Country
		}
		if len(set.Athlete.Raw) > 0 {
			raw := string(set.Athlete.Raw)
			athlete.Raw = &raw
		}
		if err := tx.UpsertAthlete(ctx, athlete); err != nil {
			return err
		}

		token := &database.Token{
			AthleteID:    athleteID,
			AccessToken:  set.AccessToken,
			RefreshToken: set.RefreshToken,
			ExpiresAt:    set.ExpiresAt,
		}
		if set.Scope != "" {
			token.Scope = &set.Scope
		}
		return tx.UpsertToken(ctx, token)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store athlete: %w", err)
	}

	m.logger.Info("Stored athlete and tokens", "athlete_id", athleteID, "scope", set.Scope)

	if m.onConnect != nil {
		m.onConnect(athleteID)
	}
	return athleteID, nil
}

func (s *stateStore) add(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = s.now().Add(stateTTL)
}

// consume reports whether state is valid and removes it (one-time use)
func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.states[state]
	if !exists {
		return false
	}
	delete(s.states, state)
	return !s.now().After(expiry)
}

func (s *stateStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, expiry := range s.states {
		if now.After(expiry) {
			delete(s.states, state)
		}
	}
}

func (s *stateStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// generateRandomState generates a cryptographically secure random state
func generateRandomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
