package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/cache"
	"github.com/veritrail/veritrail/internal/model"
)

const (
	maxRetries        = 3
	maxResponseBytes  = 4 << 20
	defaultCacheTTL   = 15 * time.Minute
	defaultSearchSize = 10
)

// Searcher finds published evidence for a claim.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.EvidenceItem, error)
}

// Client queries a search/extraction service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *Limiter
	cache      cache.Cache
	logger     *zap.Logger

	// sleepFunc is replaceable for tests.
	sleepFunc func(time.Duration)
}

// NewClient creates a search client. The cache may be nil to disable caching.
func NewClient(cfg model.RetrievalConfig, c cache.Cache, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		cache:      c,
		logger:     logger,
		sleepFunc:  time.Sleep,
	}
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	PublishedAt string  `json:"published_at"`
	Score       float64 `json:"score"`
}

// Search returns evidence items matching the query, most relevant first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.EvidenceItem, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = defaultSearchSize
	}

	cacheKey := cache.Key(fmt.Sprintf("search:%s:%d", query, limit))
	if c.cache != nil {
		if data, ok := c.cache.Get(cacheKey); ok {
			var items []model.EvidenceItem
			if err := json.Unmarshal(data, &items); err == nil {
				c.logger.Debug("search cache hit", zap.String("query", query))
				return items, nil
			}
		}
	}

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]model.EvidenceItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		item := model.EvidenceItem{
			URL:         r.URL,
			Title:       r.Title,
			Snippet:     r.Snippet,
			DomainScore: clampScore(r.Score),
		}
		if r.PublishedAt != "" {
			if ts, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
				item.PublishedAt = &ts
			}
		}
		items = append(items, item)
	}

	if c.cache != nil {
		if data, err := json.Marshal(items); err == nil {
			c.cache.Set(cacheKey, data, defaultCacheTTL)
		}
	}

	c.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", len(items)))
	return items, nil
}

// get performs a GET with per-host rate limiting and bounded retry on
// 429 and server errors.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			c.sleepFunc(time.Duration(attempt) * time.Second)
		}

		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return nil, err
		}

		body, retryable, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("retrying search request",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("search service returned %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("search service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
}

// clampScore converts the service's relevance score to the evidence
// item's integer quality scale.
func clampScore(score float64) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
