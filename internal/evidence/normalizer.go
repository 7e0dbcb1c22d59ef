package evidence

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/model"
)

// trackingParams are query parameters dropped during URL canonicalization.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "igshid": true, "mc_cid": true,
	"mc_eid": true, "ref": true, "s": true,
}

// Normalizer merges retrieval results with a direct fetch of the claimed
// original source and deduplicates by canonical URL. Evidence items are
// read-only once produced.
type Normalizer struct {
	fetcher *Fetcher // Optional; nil disables original-source fetching
	logger  *zap.Logger
}

// NewNormalizer creates a normalizer. fetcher may be nil when direct
// fetching of original sources is disabled.
func NewNormalizer(fetcher *Fetcher, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{fetcher: fetcher, logger: logger}
}

// Normalize produces the deduplicated evidence list for one verification.
// When originalURL is non-empty the original source is fetched directly and
// merged in ahead of the retrieval results; a fetch failure is logged and
// skipped, never fatal.
func (n *Normalizer) Normalize(ctx context.Context, retrieved []model.EvidenceItem, originalURL string) []model.EvidenceItem {
	merged := make([]model.EvidenceItem, 0, len(retrieved)+1)

	if originalURL != "" && n.fetcher != nil {
		item, err := n.fetcher.FetchOriginal(ctx, originalURL)
		if err != nil {
			n.logger.Warn("original source fetch failed",
				zap.String("url", originalURL), zap.Error(err))
		} else {
			merged = append(merged, item)
		}
	}
	merged = append(merged, retrieved...)

	return Deduplicate(merged)
}

// Deduplicate removes items sharing a canonical URL, keeping the first
// occurrence. Input order is preserved; the input slice is not modified.
func Deduplicate(items []model.EvidenceItem) []model.EvidenceItem {
	seen := make(map[string]bool, len(items))
	out := make([]model.EvidenceItem, 0, len(items))

	for _, item := range items {
		key := CanonicalURL(item.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// CanonicalURL reduces a URL to its deduplication key: lowercase scheme and
// host, default ports and fragments stripped, tracking query parameters
// removed, remaining parameters sorted, trailing slash dropped.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(parsed.Path, "/")

	query := ""
	if parsed.RawQuery != "" {
		values := parsed.Query()
		keys := make([]string, 0, len(values))
		for k := range values {
			if trackingParams[k] || strings.HasPrefix(k, "utm_") {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			for _, v := range values[k] {
				parts = append(parts, k+"="+v)
			}
		}
		query = strings.Join(parts, "&")
	}

	canonical := scheme + "://" + host + path
	if query != "" {
		canonical += "?" + query
	}
	return canonical
}
