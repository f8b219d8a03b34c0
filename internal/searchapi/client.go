// Package searchapi implements the JSON search provider used to resolve
// keyword rankings. Every call consumes paid quota, so callers are expected
// to pace themselves; the client only reports rate limiting, it never
// retries on its own.
package searchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ranktrack/ranktrack/internal/ranking"
)

// ErrRateLimited is returned when the provider rejects a request with HTTP
// 429. Callers treat it like any other failed page and keep paying their
// configured delay.
var ErrRateLimited = errors.New("search api: rate limited")

// Config holds the provider credentials and endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	EngineID       string
	TimeoutSeconds int
}

// Client is a ranking.SearchProvider backed by an HTTP JSON search API.
type Client struct {
	baseURL  string
	apiKey   string
	engineID string
	http     *http.Client
	logger   *zap.Logger
}

// New validates credentials up front so a misconfigured deployment fails at
// startup instead of burning an invocation per keyword.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("search api: base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("search api: api key is required")
	}
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	SearchInformation struct {
		TotalResults string  `json:"totalResults"`
		SearchTime   float64 `json:"searchTime"`
	} `json:"searchInformation"`
}

// Search fetches one page of results. offset is the 1-based index of the
// first requested result.
func (c *Client) Search(ctx context.Context, query string, offset, pageSize int) (ranking.SearchPage, error) {
	if offset < 1 {
		offset = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	if c.engineID != "" {
		params.Set("cx", c.engineID)
	}
	params.Set("q", query)
	params.Set("start", strconv.Itoa(offset))
	params.Set("num", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return ranking.SearchPage{}, fmt.Errorf("search api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return ranking.SearchPage{}, fmt.Errorf("search api: request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return ranking.SearchPage{}, ErrRateLimited
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return ranking.SearchPage{}, fmt.Errorf("search api: server error %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return ranking.SearchPage{}, fmt.Errorf("search api: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ranking.SearchPage{}, fmt.Errorf("search api: decode response: %w", err)
	}

	page := ranking.SearchPage{
		Items:         make([]ranking.SearchItem, 0, len(body.Items)),
		SearchLatency: time.Since(start),
	}
	if tr := body.SearchInformation.TotalResults; tr != "" {
		if n, err := strconv.ParseInt(tr, 10, 64); err == nil {
			page.TotalResultsReported = n
		}
	}
	for _, item := range body.Items {
		page.Items = append(page.Items, ranking.SearchItem{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	c.logger.Debug("search page fetched",
		zap.String("query", query),
		zap.Int("offset", offset),
		zap.Int("items", len(page.Items)),
		zap.Duration("dur", page.SearchLatency),
	)
	return page, nil
}
