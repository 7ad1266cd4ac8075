// Package routing queries a Distance Matrix-style service for one-way
// public-transit travel durations between coordinate pairs.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

// ErrNoRoute indicates the service found no transit route between the
// origin and destination. It is a per-pair condition, not a service fault.
var ErrNoRoute = errors.New("routing: no transit route")

// Client resolves transit travel durations.
type Client interface {
	// TransitDuration returns the one-way transit duration from origin to
	// destination ("lat,lon" strings) departing at the given instant.
	TransitDuration(ctx context.Context, origin, destination string, departure time.Time) (time.Duration, error)
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

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a routing client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// matrixResponse is the Distance Matrix JSON response, reduced to the
// fields this pipeline reads.
type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int64 `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
	ErrorMessage string `json:"error_message"`
}

func (c *httpClient) TransitDuration(ctx context.Context, origin, destination string, departure time.Time) (time.Duration, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "routing: rate limit")
	}

	params := url.Values{
		"origins":        {origin},
		"destinations":   {destination},
		"mode":           {"transit"},
		"departure_time": {fmt.Sprintf("%d", departure.Unix())},
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, eris.Wrap(err, "routing: build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "routing: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, eris.Wrap(err, "routing: read body")
	}

	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("routing: status %d: %s", resp.StatusCode, string(body))
	}

	var matrix matrixResponse
	if err := json.Unmarshal(body, &matrix); err != nil {
		return 0, eris.Wrap(err, "routing: unmarshal response")
	}

	if matrix.Status != "OK" {
		return 0, eris.Errorf("routing: api status %s: %s", matrix.Status, matrix.ErrorMessage)
	}
	if len(matrix.Rows) == 0 || len(matrix.Rows[0].Elements) == 0 {
		return 0, eris.New("routing: empty matrix response")
	}

	elem := matrix.Rows[0].Elements[0]
	switch elem.Status {
	case "OK":
		return time.Duration(elem.Duration.Value) * time.Second, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return 0, ErrNoRoute
	default:
		return 0, eris.Errorf("routing: element status %s", elem.Status)
	}
}
