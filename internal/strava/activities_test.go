package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordIDs(t *testing.T, records []json.RawMessage) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		var v struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(r, &v))
		ids = append(ids, v.ID)
	}
	return ids
}

func TestListActivitiesSinceConcatenatesPagesInOrder(t *testing.T) {
	pages := map[string]string{
		"1": `[{"id":1},{"id":2}]`,
		"2": `[{"id":3}]`,
		"3": `[]`,
	}
	var requested []string

	client, recorder := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("after"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(pages[page]))
	}))

	records, err := client.ListActivitiesSince(context.Background(), "access", 1000, 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, recordIDs(t, records))
	// a short page does not end pagination, only an empty one does
	assert.Equal(t, []string{"1", "2", "3"}, requested)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, recorder.Recorded())
}

func TestListActivitiesSinceTerminatesOnEmptyFirstPage(t *testing.T) {
	var calls int
	client, recorder := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[]`))
	}))

	for _, perPage := range []int{1, 50, 200} {
		records, err := client.ListActivitiesSince(context.Background(), "access", 0, perPage)
		require.NoError(t, err)
		assert.Empty(t, records)
	}
	assert.Equal(t, 3, calls)
	assert.Empty(t, recorder.Recorded())
}

func TestListActivitiesRetriesRateLimitThenSucceeds(t *testing.T) {
	attempts := map[string]int{}
	client, recorder := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		attempts[page]++

		if page == "1" && attempts[page] <= 2 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if page == "1" {
			w.Write([]byte(`[{"id":10},{"id":11}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))

	records, err := client.ListActivitiesSince(context.Background(), "access", 0, 50)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 11}, recordIDs(t, records))
	assert.Equal(t, 3, attempts["1"])
	assert.Equal(t, 1, attempts["2"])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 200 * time.Millisecond}, recorder.Recorded())
}

func TestListActivitiesExhaustsRetries(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var calls int
			client, recorder := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(status)
			}))

			_, err := client.ListActivitiesSince(context.Background(), "access", 0, 50)

			var exhausted *FetchExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, 4, exhausted.Attempts)

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, status, httpErr.StatusCode)

			assert.Equal(t, 4, calls)
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, recorder.Recorded())
		})
	}
}

func TestListActivitiesClientErrorIsProviderError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			var calls int
			client, recorder := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(status)
				fmt.Fprintf(w, `{"message":"status %d"}`, status)
			}))

			_, err := client.ListActivitiesSince(context.Background(), "access", 0, 50)

			var providerErr *ProviderError
			require.ErrorAs(t, err, &providerErr)
			assert.Equal(t, status, providerErr.StatusCode)
			assert.Equal(t, 1, calls)
			assert.Empty(t, recorder.Recorded())
		})
	}
}

func TestListActivitiesNonListBodyIsProtocolError(t *testing.T) {
	for name, body := range map[string]string{
		"object":  `{"message":"unexpected"}`,
		"null":    `null`,
		"garbage": `<html>`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))

			_, err := client.ListActivitiesSince(context.Background(), "access", 0, 50)

			var protoErr *ProtocolError
			assert.ErrorAs(t, err, &protoErr)
		})
	}
}

func TestListActivitiesErrorOnLaterPageDiscardsEarlierPages(t *testing.T) {
	client, _ := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`[{"id":1}]`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))

	records, err := client.ListActivitiesSince(context.Background(), "access", 0, 50)
	assert.Error(t, err)
	assert.Nil(t, records)
}
