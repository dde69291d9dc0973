package strava

import "fmt"

// HTTPError is a non-2xx response from Strava
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("strava: unexpected status %d: %s", e.StatusCode, e.Body)
}

// AuthError means the token endpoint rejected the credentials with a 4xx.
// It is never retried.
type AuthError struct {
	StatusCode int
	Code       string // OAuth error code when the provider sent one
	Body       string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("strava: authorization failed (%d %s): %s", e.StatusCode, e.Code, e.Body)
	}
	return fmt.Sprintf("strava: authorization failed (%d): %s", e.StatusCode, e.Body)
}

// ProviderError is a non-retryable 4xx from the API
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("strava: %s rejected with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// FetchExhaustedError means every attempt hit a rate limit, a 5xx or a
// transport failure. Err is the last failure seen.
type FetchExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("strava: %s gave up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error {
	return e.Err
}

// ProtocolError means a response did not have the shape Strava documents
type ProtocolError struct {
	Detail string
}

func (e *ProtocolError) Error() string {
	return "strava: protocol violation: " + e.Detail
}
