package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"strava-training-load/internal/config"
	"strava-training-load/internal/metrics"
)

// Scopes requested by the connect flow. Strava wants them comma separated
// in a single parameter.
const connectScope = "read,activity:read_all"

// maxErrorBody caps how much of an error response is kept for messages
const maxErrorBody = 2048

// Client is a Strava API client
type Client struct {
	apiClient   *http.Client // token exchange and small calls
	listClient  *http.Client // activity list pages
	oauth       *oauth2.Config
	baseURL     string
	retry       RetryPolicy
	pageDelay   time.Duration
	logger      *slog.Logger
	rateLimiter *RateLimiter
}

// NewClient creates a new Strava API client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiClient:  &http.Client{Timeout: cfg.TokenTimeout},
		listClient: &http.Client{Timeout: cfg.ListTimeout},
		oauth: &oauth2.Config{
			ClientID:     cfg.StravaClientID,
			ClientSecret: cfg.StravaClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.StravaAuthURL,
				TokenURL:  cfg.StravaTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{connectScope},
		},
		baseURL:     strings.TrimRight(cfg.StravaAPIBaseURL, "/"),
		retry:       DefaultRetryPolicy(cfg.MaxAttempts).normalized(),
		pageDelay:   cfg.PageDelay,
		logger:      logger,
		rateLimiter: NewRateLimiter(),
	}
}

// SetBaseURL sets the API base URL (for testing)
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SetTokenURL sets the OAuth token URL (for testing)
func (c *Client) SetTokenURL(u string) {
	c.oauth.Endpoint.TokenURL = u
}

// SetRetryPolicy replaces the retry policy
func (c *Client) SetRetryPolicy(p RetryPolicy) {
	c.retry = p.normalized()
}

// SetPageDelay sets the pause between list pages
func (c *Client) SetPageDelay(d time.Duration) {
	c.pageDelay = d
}

// doGet performs an authenticated GET, retrying 429, 5xx and transport
// failures with backoff. Any other non-2xx status is a ProviderError.
func (c *Client) doGet(ctx context.Context, op string, httpClient *http.Client, path string, query url.Values, accessToken string) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Info("retrying request", "operation", op, "attempt", attempt+1, "delay_ms", delay.Milliseconds())
			if err := c.retry.Sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := httpClient.Do(req)
		duration := time.Since(start)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("request failed", "operation", op, "error", err, "attempt", attempt+1)
			recordRequest(op, "error", duration)
			metrics.StravaAPIRetriesTotal.WithLabelValues(op, "transport").Inc()
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.updateRateLimits(resp.Header)
		recordRequest(op, strconv.Itoa(resp.StatusCode), duration)
		c.logger.Debug("strava_api_request", "operation", op, "path", path, "status", resp.StatusCode,
			"duration_ms", duration.Milliseconds(), "attempt", attempt+1)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				metrics.StravaAPIRetriesTotal.WithLabelValues(op, "transport").Inc()
				lastErr = fmt.Errorf("failed to read response body: %w", readErr)
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited", "operation", op, "attempt", attempt+1,
				"retry_after_s", parseRetryAfter(resp.Header).Seconds())
			metrics.StravaAPIRetriesTotal.WithLabelValues(op, "rate_limited").Inc()
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Body: truncate(body)}
		case resp.StatusCode >= 500:
			c.logger.Warn("server error", "operation", op, "status", resp.StatusCode, "attempt", attempt+1)
			metrics.StravaAPIRetriesTotal.WithLabelValues(op, "server_error").Inc()
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Body: truncate(body)}
		default:
			return nil, &ProviderError{Operation: op, StatusCode: resp.StatusCode, Body: truncate(body)}
		}
	}

	return nil, &FetchExhaustedError{Operation: op, Attempts: c.retry.MaxAttempts, Err: lastErr}
}

// updateRateLimits reads the "15min,daily" rate limit headers
func (c *Client) updateRateLimits(headers http.Header) {
	limit15, limitDaily, ok := parsePair(headers.Get("X-RateLimit-Limit"))
	if !ok {
		return
	}
	usage15, usageDaily, ok := parsePair(headers.Get("X-RateLimit-Usage"))
	if !ok {
		return
	}

	c.rateLimiter.Update(limit15, usage15, limitDaily, usageDaily)

	if c.rateLimiter.IsNearLimit(90) {
		c.logger.Warn("approaching rate limit",
			"usage_15min", usage15, "limit_15min", limit15,
			"usage_daily", usageDaily, "limit_daily", limitDaily)
	}
}

func parsePair(header string) (int, int, bool) {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}

// parseRetryAfter extracts the Retry-After delay. It is only logged; the
// backoff policy decides the actual wait.
func parseRetryAfter(headers http.Header) time.Duration {
	seconds, err := strconv.Atoi(headers.Get("Retry-After"))
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func recordRequest(op, status string, duration time.Duration) {
	metrics.StravaAPIRequestsTotal.WithLabelValues(op, status).Inc()
	metrics.StravaAPIRequestDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}

// isContextErr reports whether err came from ctx being cancelled or timing out
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
