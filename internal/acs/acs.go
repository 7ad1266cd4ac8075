// Package acs fetches block-group population and ethnicity estimates from
// the Census ACS 5-year Data API.
package acs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.census.gov/data"

// Demographics holds the per-block-group estimates after the long-format
// API response has been reshaped to one record per unit.
type Demographics struct {
	GEOID       string
	TotalPop    int
	SubgroupPop int
	// PctSubgroup is subgroup/total*100; NaN when TotalPop is zero.
	PctSubgroup float64
}

// Request describes one block-group ACS query.
type Request struct {
	Year        int
	State       string   // state FIPS, e.g. "13"
	Counties    []string // county FIPS codes within the state
	TotalVar    string   // e.g. B01003_001E
	SubgroupVar string   // e.g. B03003_003E
	APIKey      string
}

// Client fetches ACS block-group estimates.
type Client interface {
	BlockGroups(ctx context.Context, req Request) ([]Demographics, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an ACS API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BlockGroups fetches one query per county and reshapes the responses
// into one Demographics record per GEOID. Any upstream failure aborts
// the whole fetch; there is no partial result.
func (c *httpClient) BlockGroups(ctx context.Context, req Request) ([]Demographics, error) {
	if req.State == "" {
		return nil, eris.New("acs: state FIPS is required")
	}
	if len(req.Counties) == 0 {
		return nil, eris.New("acs: at least one county is required")
	}
	if req.TotalVar == "" || req.SubgroupVar == "" {
		return nil, eris.New("acs: variable codes are required")
	}

	log := zap.L().With(zap.Int("year", req.Year), zap.String("state", req.State))

	var out []Demographics
	for _, county := range req.Counties {
		rows, err := c.fetchCounty(ctx, req, county)
		if err != nil {
			return nil, eris.Wrapf(err, "acs: county %s", county)
		}
		out = append(out, rows...)
		log.Debug("fetched ACS county", zap.String("county", county), zap.Int("rows", len(rows)))
	}

	log.Info("fetched ACS demographics", zap.Int("block_groups", len(out)))
	return out, nil
}

func (c *httpClient) fetchCounty(ctx context.Context, req Request, county string) ([]Demographics, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "acs: rate limit")
	}

	params := url.Values{
		"get": {req.TotalVar + "," + req.SubgroupVar},
		"for": {"block group:*"},
	}
	params.Add("in", "state:"+req.State)
	params.Add("in", "county:"+county)
	if req.APIKey != "" {
		params.Set("key", req.APIKey)
	}

	reqURL := fmt.Sprintf("%s/%d/acs/acs5?%s", c.baseURL, req.Year, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "acs: build request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "acs: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "acs: read body")
	}

	if resp.StatusCode != http.StatusOK {
		// The API reports unknown variables and bad geography as plain-text
		// non-200 responses; surface the body for diagnosis.
		return nil, eris.Errorf("acs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseResponse(body, req.TotalVar, req.SubgroupVar)
}

// parseResponse parses the Census array-of-arrays JSON:
// [[header], [row1], [row2], ...]. The trailing geography columns
// (state, county, tract, block group) are concatenated into the GEOID.
func parseResponse(data []byte, totalVar, subgroupVar string) ([]Demographics, error) {
	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "acs: unmarshal JSON")
	}
	if len(raw) < 2 {
		return nil, nil // header only, no data rows
	}

	header := raw[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}
	for _, col := range []string{totalVar, subgroupVar, "state", "county", "tract", "block group"} {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("acs: response missing column %q", col)
		}
	}

	out := make([]Demographics, 0, len(raw)-1)
	for i, record := range raw[1:] {
		if len(record) != len(header) {
			return nil, eris.Errorf("acs: row %d has %d columns, want %d", i+1, len(record), len(header))
		}

		total, err := strconv.Atoi(record[colIdx[totalVar]])
		if err != nil {
			return nil, eris.Wrapf(err, "acs: row %d: parse %s", i+1, totalVar)
		}
		subgroup, err := strconv.Atoi(record[colIdx[subgroupVar]])
		if err != nil {
			return nil, eris.Wrapf(err, "acs: row %d: parse %s", i+1, subgroupVar)
		}

		geoid := record[colIdx["state"]] + record[colIdx["county"]] +
			record[colIdx["tract"]] + record[colIdx["block group"]]

		out = append(out, Demographics{
			GEOID:       geoid,
			TotalPop:    total,
			SubgroupPop: subgroup,
			PctSubgroup: Percentage(subgroup, total),
		})
	}
	return out, nil
}

// Percentage returns subgroup/total*100, or NaN when total is zero.
func Percentage(subgroup, total int) float64 {
	if total == 0 {
		return math.NaN()
	}
	return float64(subgroup) / float64(total) * 100
}
