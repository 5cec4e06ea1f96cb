// Package espn fetches NFL game summaries (win probability and play-by-play) from the ESPN site API.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/latencymon/internal/models"
)

const (
	DefaultBaseURL = "https://site.web.api.espn.com"
	summaryPath    = "/apis/site/v2/sports/football/nfl/summary"
)

// ClientConfig tunes retries and request pacing.
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	RateLimit      float64 // requests per second; 0 disables limiting
}

// Client provides access to the ESPN summary endpoint.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a new ESPN client.
func NewClient(baseURL string, cfg ClientConfig) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = 200 * time.Millisecond
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelayBase).
		SetRetryMaxWaitTime(cfg.RetryDelayBase * time.Duration(cfg.MaxRetries+1)).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{http: httpClient, limiter: limiter}
}

// FetchSummary retrieves the game summary for an ESPN event ID.
func (c *Client) FetchSummary(ctx context.Context, gameID string) (*models.Summary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("event", gameID).
		Get(summaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("summary request failed: %s", resp.Status())
	}

	var summary models.Summary
	if err := json.Unmarshal(resp.Body(), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &summary, nil
}
