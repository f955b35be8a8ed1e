// Package client is a thin HTTP client for the loan-risk scoring service.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx reply from the service.
type APIError struct {
	Status  int
	Message string
	Trace   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("loan-risk: %d %s", e.Status, e.Message)
}

// Prediction is the score of one application.
type Prediction struct {
	DefaultProbability float64            `json:"default_probability"`
	Explanation        map[string]float64 `json:"explanation"`
}

// Health is the reply of GET /health.
type Health struct {
	Healthy       bool   `json:"healthy"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Attribution is one stored feature contribution.
type Attribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// HistoryEntry is one previously served prediction.
type HistoryEntry struct {
	Timestamp          time.Time      `json:"timestamp"`
	SchemaVersion      string         `json:"schema_version"`
	DefaultProbability float64        `json:"default_probability"`
	TopAttributions    []Attribution  `json:"top_attributions"`
	Request            map[string]any `json:"request"`
}

type errorBody struct {
	Error string `json:"error"`
	Trace string `json:"trace"`
}

type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for the service at base. A scheme is added when
// missing.
func New(base string, timeout time.Duration) (*Client, error) {
	base, err := normalizeURL(base)
	if err != nil {
		return nil, err
	}
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: base, rest: r}, nil
}

func normalizeURL(base string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q", base)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// Predict scores one application.
func (c *Client) Predict(ctx context.Context, record map[string]any) (*Prediction, error) {
	pred := &Prediction{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(record).
		SetResult(pred).
		SetError(&errorBody{}).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return pred, nil
}

// Health reports whether the service has a model loaded. An unhealthy
// service is returned as a Health value, not an error.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	h := &Health{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(h).
		SetError(h).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 503 {
		return nil, &APIError{Status: resp.StatusCode(), Message: resp.String()}
	}
	return h, nil
}

// Recent returns up to limit stored predictions, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&entries).
		SetError(&errorBody{}).
		Get(c.base + "/predictions")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return entries, nil
}

// Between returns up to limit stored predictions with timestamps in
// [from, to], oldest first. A zero bound is left open.
func (c *Client) Between(ctx context.Context, from, to time.Time, limit int) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&entries).
		SetError(&errorBody{})
	if !from.IsZero() {
		req.SetQueryParam("from", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		req.SetQueryParam("to", to.UTC().Format(time.RFC3339))
	}
	if from.IsZero() && to.IsZero() {
		// the server only switches to range mode when a bound is given
		req.SetQueryParam("from", time.Unix(0, 0).UTC().Format(time.RFC3339))
	}
	resp, err := req.Get(c.base + "/predictions")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := apiError(resp); err != nil {
		return nil, err
	}
	return entries, nil
}

func apiError(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Trace = body.Trace
	}
	return apiErr
}
