package model

import (
	"net/url"
	"strings"
	"time"
)

// EvidenceItem represents one retrieved source document or fetched original article.
// Items are produced once by the retrieval step and read-only thereafter.
type EvidenceItem struct {
	URL         string     `json:"url"`                    // Full URL
	Title       string     `json:"title"`                  // Page or article title
	Snippet     string     `json:"snippet,omitempty"`      // Extracted text excerpt
	PublishedAt *time.Time `json:"published_at,omitempty"` // Publication timestamp, if known
	DomainScore int        `json:"domain_score"`           // Source quality score (0-100)
	IsOriginal  bool       `json:"is_original,omitempty"`  // Whether this is the claimed original source
}

// Host returns the lowercase host portion of the item URL, or "" if unparseable.
func (e EvidenceItem) Host() string {
	parsed, err := url.Parse(e.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
