package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/veritrail/veritrail/internal/cache"
	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/util"
)

const snippetLength = 280

// originalDomainScore is the default source-quality score for a directly
// fetched original; retrieval results carry scores from the search service.
const originalDomainScore = 50

// Fetcher retrieves the claimed original source of a claim directly,
// honoring robots.txt, and turns the page into an evidence item.
type Fetcher struct {
	httpClient *http.Client
	robots     *RobotsChecker
	cache      cache.Cache // Optional
	userAgent  string
	maxBytes   int64
	cacheTTL   time.Duration
}

// NewFetcher creates a fetcher. store may be nil to disable caching.
func NewFetcher(cfg model.HTTPConfig, store cache.Cache, cacheTTL time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		robots:    NewRobotsChecker(cfg.UserAgent, cfg.Timeout),
		cache:     store,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		cacheTTL:  cacheTTL,
	}
}

// FetchOriginal fetches the page at rawURL and converts it into an evidence
// item marked as the claimed original source.
func (f *Fetcher) FetchOriginal(ctx context.Context, rawURL string) (model.EvidenceItem, error) {
	if item, ok := f.cached(rawURL); ok {
		return item, nil
	}

	allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return model.EvidenceItem{}, fmt.Errorf("robots check: %w", err)
	}
	if !allowed {
		return model.EvidenceItem{}, fmt.Errorf("fetch disallowed by robots.txt: %s", rawURL)
	}
	if crawlDelay > 0 {
		select {
		case <-ctx.Done():
			return model.EvidenceItem{}, ctx.Err()
		case <-time.After(crawlDelay):
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.EvidenceItem{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return model.EvidenceItem{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.EvidenceItem{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return model.EvidenceItem{}, fmt.Errorf("read body: %w", err)
	}

	title, text := parsePage(string(body))
	var publishedAt *time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(time.RFC1123, lm); err == nil {
			publishedAt = &t
		}
	}

	item := model.EvidenceItem{
		URL:         resp.Request.URL.String(),
		Title:       title,
		Snippet:     snippet(text),
		PublishedAt: publishedAt,
		DomainScore: originalDomainScore,
		IsOriginal:  true,
	}
	f.store(rawURL, item)
	return item, nil
}

func (f *Fetcher) cached(rawURL string) (model.EvidenceItem, bool) {
	if f.cache == nil {
		return model.EvidenceItem{}, false
	}
	data, found := f.cache.Get(cache.Key(rawURL))
	if !found {
		return model.EvidenceItem{}, false
	}
	var item model.EvidenceItem
	if err := json.Unmarshal(data, &item); err != nil {
		return model.EvidenceItem{}, false
	}
	return item, true
}

func (f *Fetcher) store(rawURL string, item model.EvidenceItem) {
	if f.cache == nil {
		return
	}
	if data, err := json.Marshal(item); err == nil {
		_ = f.cache.Set(cache.Key(rawURL), data, f.cacheTTL)
	}
}

// parsePage extracts the document title and visible text.
func parsePage(htmlContent string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.ElementNode && n.Data == "title":
			if title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript"):
			return
		case n.Type == html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				b.WriteString(trimmed)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(b.String())
}

func snippet(text string) string {
	if len(text) <= snippetLength {
		return text
	}
	cut := text[:snippetLength]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
