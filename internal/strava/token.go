package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"strava-training-load/internal/metrics"
)

// TokenSet is what Strava returns from the token endpoint
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // Unix timestamp
	Scope        string
	// Athlete is only present on authorization code exchange
	Athlete *AthleteProfile
}

// RefreshToken trades a refresh token for a new token set. The returned
// RefreshToken may differ from the one passed in; the old one is then dead.
// A 4xx from the token endpoint is an AuthError.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.apiClient)

	start := time.Now()
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, c.tokenError(metrics.OpRefreshToken, err, time.Since(start))
	}
	recordRequest(metrics.OpRefreshToken, strconv.Itoa(http.StatusOK), time.Since(start))
	c.logger.Info("token_refresh", "duration_ms", time.Since(start).Milliseconds())

	return tokenSetFrom(tok)
}

// ExchangeCode trades an authorization code from the connect flow for a token set
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.apiClient)

	start := time.Now()
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, c.tokenError(metrics.OpExchangeCode, err, time.Since(start))
	}
	recordRequest(metrics.OpExchangeCode, strconv.Itoa(http.StatusOK), time.Since(start))
	c.logger.Info("token_exchange", "duration_ms", time.Since(start).Milliseconds())

	return tokenSetFrom(tok)
}

// AuthCodeURL builds the Strava authorization URL for the connect flow
func (c *Client) AuthCodeURL(state, redirectURL string) string {
	cfg := *c.oauth
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

func (c *Client) tokenError(op string, err error, duration time.Duration) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		recordRequest(op, "error", duration)
		if isContextErr(err) {
			return err
		}
		c.logger.Error("token request failed", "operation", op, "error", err)
		return fmt.Errorf("%s failed: %w", op, err)
	}

	status := retrieveErr.Response.StatusCode
	recordRequest(op, strconv.Itoa(status), duration)
	c.logger.Warn("token request rejected", "operation", op, "status", status, "error_code", retrieveErr.ErrorCode)

	if status >= 400 && status < 500 {
		return &AuthError{StatusCode: status, Code: retrieveErr.ErrorCode, Body: truncate(retrieveErr.Body)}
	}
	return fmt.Errorf("%s failed: %w", op, &HTTPError{StatusCode: status, Body: truncate(retrieveErr.Body)})
}

func tokenSetFrom(tok *oauth2.Token) (*TokenSet, error) {
	if tok.AccessToken == "" {
		return nil, &ProtocolError{Detail: "token response without access_token"}
	}

	set := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}

	switch v := tok.Extra("expires_at").(type) {
	case float64:
		set.ExpiresAt = int64(v)
	case string:
		set.ExpiresAt, _ = strconv.ParseInt(v, 10, 64)
	}
	if set.ExpiresAt == 0 && !tok.Expiry.IsZero() {
		set.ExpiresAt = tok.Expiry.Unix()
	}

	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}

	if raw := tok.Extra("athlete"); raw != nil {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, &ProtocolError{Detail: "token response athlete is not an object"}
		}
		profile, err := decodeAthlete(data)
		if err != nil {
			return nil, err
		}
		set.Athlete = profile
	}

	return set, nil
}
