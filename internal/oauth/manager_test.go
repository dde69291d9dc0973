package oauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-training-load/internal/config"
	"strava-training-load/internal/database"
	"strava-training-load/internal/strava"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

// setupOAuthTest wires a Manager to a real Strava client whose token
// endpoint is served by handler
func setupOAuthTest(t *testing.T, handler http.HandlerFunc) (*Manager, *database.DB) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		StravaClientID:     "test_client_id",
		StravaClientSecret: "test_client_secret",
		StravaAPIBaseURL:   server.URL,
		StravaTokenURL:     server.URL + "/oauth/token",
		StravaAuthURL:      "https://www.strava.com/oauth/authorize",
		PerPage:            50,
		MaxAttempts:        1,
		TokenTimeout:       5 * time.Second,
		ListTimeout:        5 * time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := setupTestDB(t)
	return NewManager(db, strava.NewClient(cfg, logger), logger), db
}

func tokenExchangeHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test_code", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"token_type":    "Bearer",
			"access_token":  "access_123",
			"refresh_token": "refresh_123",
			"expires_at":    1700021600,
			"expires_in":    21600,
			"scope":         "read,activity:read_all",
			"athlete": map[string]any{
				"id":        12345,
				"firstname": "Jane",
				"lastname":  "Doe",
				"city":      "Grenoble",
			},
		})
	}
}

func TestAuthURL(t *testing.T) {
	manager, _ := setupOAuthTest(t, tokenExchangeHandler(t))

	authURL, state, err := manager.AuthURL("http://localhost:4101/oauth-callback")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "www.strava.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "test_client_id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:4101/oauth-callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "read,activity:read_all", q.Get("scope"))
	assert.Equal(t, state, q.Get("state"))

	assert.Equal(t, 1, manager.states.size())
}

func TestStateIsSingleUse(t *testing.T) {
	manager, _ := setupOAuthTest(t, tokenExchangeHandler(t))

	_, state, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)

	assert.True(t, manager.states.consume(state))
	assert.False(t, manager.states.consume(state))
	assert.False(t, manager.states.consume("never-issued"))
}

func TestStateExpires(t *testing.T) {
	manager, _ := setupOAuthTest(t, tokenExchangeHandler(t))
	now := time.Unix(1000, 0)
	manager.states.now = func() time.Time { return now }

	_, expired, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)
	_, fresh, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)

	now = now.Add(stateTTL + time.Second)
	assert.False(t, manager.states.consume(expired))

	manager.states.add(fresh)
	manager.states.sweep()
	assert.Equal(t, 1, manager.states.size())
	assert.True(t, manager.states.consume(fresh))
}

func TestHandleCallbackStoresAthleteAndTokens(t *testing.T) {
	manager, db := setupOAuthTest(t, tokenExchangeHandler(t))
	ctx := context.Background()

	var connected []int64
	manager.OnConnect(func(id int64) { connected = append(connected, id) })

	_, state, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)

	athleteID, err := manager.HandleCallback(ctx, "test_code", state)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), athleteID)
	assert.Equal(t, []int64{12345}, connected)

	athlete, err := db.GetAthlete(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, athlete)
	assert.Equal(t, "Jane", *athlete.Firstname)
	assert.Equal(t, "Grenoble", *athlete.City)
	assert.Nil(t, athlete.Country)

	token, err := db.GetToken(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "access_123", token.AccessToken)
	assert.Equal(t, "refresh_123", token.RefreshToken)
	assert.Equal(t, int64(1700021600), token.ExpiresAt)
	assert.Equal(t, "read,activity:read_all", *token.Scope)
}

func TestHandleCallbackRejectsUnknownState(t *testing.T) {
	called := false
	manager, _ := setupOAuthTest(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := manager.HandleCallback(context.Background(), "test_code", "forged")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, called, "code must not be exchanged for an unknown state")
}

func TestHandleCallbackExchangeRejected(t *testing.T) {
	manager, db := setupOAuthTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "Bad Request", "errors": [{"code": "invalid"}]}`))
	})

	_, state, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)

	_, err = manager.HandleCallback(context.Background(), "bad_code", state)
	var authErr *strava.AuthError
	require.ErrorAs(t, err, &authErr)

	n, err := db.CountAthletes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleCallbackWithoutAthlete(t *testing.T) {
	manager, _ := setupOAuthTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type": "Bearer", "access_token": "a", "refresh_token": "r", "expires_at": 1}`))
	})

	_, state, err := manager.AuthURL("http://localhost/cb")
	require.NoError(t, err)

	_, err = manager.HandleCallback(context.Background(), "test_code", state)
	var protoErr *strava.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestGenerateRandomState(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		state, err := generateRandomState()
		require.NoError(t, err)
		assert.Len(t, state, 44)
		assert.False(t, seen[state], "duplicate state")
		seen[state] = true
	}
}
