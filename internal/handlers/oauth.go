package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"strava-training-load/internal/oauth"
)

// OAuthHandler handles OAuth flow endpoints
type OAuthHandler struct {
	oauthManager *oauth.Manager
	logger       *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauthManager *oauth.Manager, logger *slog.Logger) *OAuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthHandler{oauthManager: oauthManager, logger: logger}
}

// HandleAuthStart initiates the OAuth flow by redirecting to Strava
func (h *OAuthHandler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	// Redirect back to the host the browser used
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	redirectURI := fmt.Sprintf("%s://%s/oauth-callback", scheme, r.Host)

	authURL, _, err := h.oauthManager.AuthURL(redirectURI)
	if err != nil {
		h.logger.Error("Failed to generate auth URL", "error", err)
		http.Error(w, "Failed to start OAuth flow", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Starting OAuth flow", "redirect_uri", redirectURI)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback processes the OAuth callback from Strava
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if errorParam := query.Get("error"); errorParam != "" {
		h.logger.Warn("OAuth authorization denied", "error", errorParam)
		http.Error(w, fmt.Sprintf("Authorization failed: %s", errorParam), http.StatusBadRequest)
		return
	}

	if code == "" || state == "" {
		h.logger.Warn("Missing OAuth parameters", "has_code", code != "", "has_state", state != "")
		http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
		return
	}

	athleteID, err := h.oauthManager.HandleCallback(r.Context(), code, state)
	if err != nil {
		h.logger.Error("Failed to handle OAuth callback", "error", err)

		if errors.Is(err, oauth.ErrInvalidState) {
			http.Error(w, "Invalid or expired authorization request. Please try again.", http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to complete authorization", http.StatusBadGateway)
		return
	}

	h.logger.Info("OAuth flow completed", "athlete_id", athleteID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Strava connected</title>
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
			max-width: 600px;
			margin: 100px auto;
			padding: 20px;
			text-align: center;
		}
		h1 { color: #FC4C02; }
		p { color: #666; line-height: 1.6; }
		code {
			background: #f4f4f4;
			padding: 2px 6px;
			border-radius: 3px;
			font-family: monospace;
		}
	</style>
</head>
<body>
	<h1>Strava connected</h1>
	<p>Athlete <code>%d</code> is connected. Activities are imported by the next sync.</p>
	<p>You can close this window.</p>
</body>
</html>`, athleteID)
}
