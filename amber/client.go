/* client.go - Amber Electric HTTP client

PURPOSE:
  Thin authenticated wrapper over the Amber REST API. Three calls: list
  sites, fetch one site, fetch priced usage for a date range.

KEY INSIGHT:
  The usage endpoint rejects long ranges, so FetchUsage splits the span
  into chunks of at most 7 days and concatenates the results. Callers see
  one flat slice regardless of range length.

SEE ALSO:
  - types.go:       Site, UsageRecord, conversion into billing intervals
  - api/refresher.go: the only production caller
*/
package amber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/wattle/billing-engine/billing"
)

// DefaultBaseURL targets the public production API.
const DefaultBaseURL = "https://api.amber.com.au/v1"

// maxChunkDays is the largest span the usage endpoint accepts per request.
const maxChunkDays = 7

const userAgent = "billing-engine/1.0"

// APIError reports a non-2xx response. Status 401/403 means the token is
// bad; the refresher treats those the same as any other failure and keeps
// the last good position.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("amber: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("amber: status %d", e.Status)
}

// Client talks to the Amber API with a personal access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient builds a Client. An empty baseURL selects the production API.
func NewClient(token, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "amber").Logger(),
	}
}

// ListSites returns every site the token can see.
func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	var sites []Site
	if err := c.get(ctx, "/sites", nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

// GetSite returns one site by ID.
func (c *Client) GetSite(ctx context.Context, siteID string) (Site, error) {
	var site Site
	if err := c.get(ctx, "/sites/"+url.PathEscape(siteID), nil, &site); err != nil {
		return Site{}, err
	}
	return site, nil
}

// FetchUsage returns priced interval records for [from, to] inclusive,
// already converted into billing intervals. The range is walked in 7-day
// chunks; a failure in any chunk fails the whole call so the caller never
// stores a day-shaped hole.
func (c *Client) FetchUsage(ctx context.Context, siteID string, from, to billing.Date) ([]billing.IntervalRecord, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("amber: usage range end %s before start %s", to, from)
	}

	var out []billing.IntervalRecord
	for chunkStart := from; chunkStart.BeforeOrEqual(to); chunkStart = chunkStart.AddDays(maxChunkDays) {
		chunkEnd := chunkStart.AddDays(maxChunkDays - 1).Min(to)

		q := url.Values{}
		q.Set("startDate", chunkStart.String())
		q.Set("endDate", chunkEnd.String())

		var records []UsageRecord
		if err := c.get(ctx, "/sites/"+url.PathEscape(siteID)+"/usage", q, &records); err != nil {
			return nil, err
		}

		intervals, err := Intervals(records)
		if err != nil {
			return nil, err
		}
		out = append(out, intervals...)

		c.log.Debug().
			Str("site", siteID).
			Stringer("from", chunkStart).
			Stringer("to", chunkEnd).
			Int("records", len(records)).
			Msg("usage chunk fetched")
	}
	return out, nil
}

// get issues one authenticated GET and decodes the JSON body into dest.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("amber: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("request failed")
		return fmt.Errorf("amber: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request complete")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("amber: decode %s: %w", path, err)
	}
	return nil
}
