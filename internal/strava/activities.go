package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"strava-training-load/internal/metrics"
)

// ListActivitiesPage fetches one page of the athlete's activities starting
// strictly after the given epoch. Records are returned undecoded.
func (c *Client) ListActivitiesPage(ctx context.Context, accessToken string, after int64, page, perPage int) ([]json.RawMessage, error) {
	params := url.Values{
		"after":    {strconv.FormatInt(after, 10)},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}

	body, err := c.doGet(ctx, metrics.OpListActivities, c.listClient, "/athlete/activities", params, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities page %d: %w", page, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, &ProtocolError{Detail: fmt.Sprintf("activities page %d is not a JSON array: %v", page, err)}
	}
	if records == nil {
		return nil, &ProtocolError{Detail: fmt.Sprintf("activities page %d is null", page)}
	}

	return records, nil
}

// ListActivitiesSince walks pages 1, 2, ... until Strava returns an empty
// page and returns every record in request order. The page delay is applied
// after each non-empty page.
func (c *Client) ListActivitiesSince(ctx context.Context, accessToken string, after int64, perPage int) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for page := 1; ; page++ {
		records, err := c.ListActivitiesPage(ctx, accessToken, after, page, perPage)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			c.logger.Debug("pagination complete", "pages", page-1, "records", len(all))
			return all, nil
		}

		all = append(all, records...)
		c.logger.Debug("fetched activities page", "page", page, "records", len(records))

		if err := c.retry.Sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}
}
