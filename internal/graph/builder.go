package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/veritrail/veritrail/internal/model"
)

// ErrInvalidGraph indicates a structurally invalid graph: an empty or
// duplicate node id, a missing URL, or an edge referencing a missing node.
// This is an invariant violation, never repaired silently.
var ErrInvalidGraph = errors.New("invalid attribution graph")

const (
	// clusterThreshold is the minimum normalized text similarity for two
	// nodes to be considered near-duplicates.
	clusterThreshold = 0.82

	// quoteThreshold is the minimum token Jaccard overlap for a "quotes"
	// edge between consecutive nodes.
	quoteThreshold = 0.7

	defaultDomainScore = 50
)

var debunkerKeywords = []string{
	"debunk", "fact check", "fact-check", "false claim", "misleading",
	"hoax", "fake", "no evidence", "not true",
}

var debunkerDomains = []string{
	"snopes.com", "politifact.com", "factcheck.org", "fullfact.org",
	"leadstories.com",
}

var amplifierKeywords = []string{
	"viral", "trending", "goes viral", "retweet", "shares", "spreading",
}

// Builder constructs attribution graphs from deduplicated evidence.
type Builder struct{}

// NewBuilder creates a graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build turns a claim and its deduplicated evidence into a canonical
// attribution graph. An empty evidence set yields an empty, hashed graph.
func (b *Builder) Build(claim string, items []model.EvidenceItem) (*model.Graph, error) {
	g := &model.Graph{
		Claim:   claim,
		Nodes:   makeNodes(items),
		BuiltAt: time.Now().UTC(),
	}

	g.Clusters = detectDuplicateClusters(g.Nodes)
	assignRoles(g.Nodes)
	g.Edges = buildEdges(g.Nodes)

	hash, err := CanonicalHash(g.Claim, g.Nodes, g.Edges)
	if err != nil {
		return nil, err
	}
	g.Hash = hash

	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// makeNodes creates one node per evidence item, in retrieval order.
func makeNodes(items []model.EvidenceItem) []model.Node {
	nodes := make([]model.Node, 0, len(items))
	for i, item := range items {
		score := item.DomainScore
		if score == 0 {
			score = defaultDomainScore
		}
		var ts time.Time
		if item.PublishedAt != nil {
			ts = *item.PublishedAt
		}
		nodes = append(nodes, model.Node{
			ID:          fmt.Sprintf("node_%d", i),
			URL:         item.URL,
			Title:       item.Title,
			Snippet:     item.Snippet,
			Timestamp:   ts,
			DomainScore: score,
			Role:        model.RoleUnknown,
			Domain:      item.Host(),
		})
	}
	return nodes
}

// detectDuplicateClusters groups near-duplicate nodes by fuzzy matching
// title+snippet text. The pass is single, greedy and order-dependent: each
// unclustered node in turn seeds a cluster of every remaining unclustered
// node within the similarity threshold. Reordered input can produce
// different clusters for chains where A~B and B~C but A and C are not
// mutually similar.
func detectDuplicateClusters(nodes []model.Node) []model.Cluster {
	var clusters []model.Cluster
	clustered := make(map[string]bool)

	for i := range nodes {
		if clustered[nodes[i].ID] {
			continue
		}
		members := []string{nodes[i].ID}
		seedText := nodeText(nodes[i])

		for j := range nodes {
			if j == i || clustered[nodes[j].ID] {
				continue
			}
			if textSimilarity(seedText, nodeText(nodes[j])) >= clusterThreshold {
				members = append(members, nodes[j].ID)
				clustered[nodes[j].ID] = true
			}
		}

		if len(members) > 1 {
			clustered[nodes[i].ID] = true
			clusters = append(clusters, model.Cluster{
				ID:      fmt.Sprintf("cluster_%d", len(clusters)),
				NodeIDs: members,
			})
		}
	}
	return clusters
}

// assignRoles classifies every node. The earliest node by timestamp (ties
// broken by input order) is the single origin; the rest are classified by
// content and domain heuristics with debunker signals taking precedence.
func assignRoles(nodes []model.Node) {
	if len(nodes) == 0 {
		return
	}

	order := timestampOrder(nodes)
	nodes[order[0]].Role = model.RoleOrigin

	for _, idx := range order[1:] {
		n := &nodes[idx]
		switch {
		case hasDebunkerLanguage(nodeText(*n)):
			n.Role = model.RoleDebunker
		case isDebunkerDomain(n.Domain):
			n.Role = model.RoleDebunker
		case hasAmplifierLanguage(nodeText(*n)):
			n.Role = model.RoleAmplifier
		default:
			n.Role = model.RoleModifier
		}
	}
}

// buildEdges links nodes in timestamp order: each node receives one edge
// from its immediate predecessor, and a debunker whose predecessor is not
// the origin additionally receives a contradicts edge straight from the
// origin. No edges are created for an empty or single-node graph.
func buildEdges(nodes []model.Node) []model.Edge {
	if len(nodes) < 2 {
		return nil
	}

	order := timestampOrder(nodes)
	origin := &nodes[order[0]]
	var edges []model.Edge

	addEdge := func(from, to *model.Node, rel model.Relationship, why string) {
		edges = append(edges, model.Edge{
			ID:           fmt.Sprintf("edge_%d", len(edges)),
			From:         from.ID,
			To:           to.ID,
			Relationship: rel,
			Timestamp:    to.Timestamp,
			Evidence:     why,
		})
	}

	for i := 1; i < len(order); i++ {
		prev := &nodes[order[i-1]]
		curr := &nodes[order[i]]

		rel, why := classifyEdge(prev, curr)
		addEdge(prev, curr, rel, why)

		if curr.Role == model.RoleDebunker && prev.ID != origin.ID {
			addEdge(origin, curr, model.RelContradicts,
				"debunker challenges the original claim")
		}
	}
	return edges
}

// classifyEdge picks the relationship between consecutive nodes by
// precedence: contradicts, quotes, updates, amplifies.
func classifyEdge(prev, curr *model.Node) (model.Relationship, string) {
	if curr.Role == model.RoleDebunker {
		return model.RelContradicts, "debunker published after predecessor"
	}
	if tokenJaccard(nodeText(*prev), nodeText(*curr)) > quoteThreshold {
		return model.RelQuotes, "high textual overlap with predecessor"
	}
	if prev.Domain != "" && prev.Domain == curr.Domain {
		return model.RelUpdates, "follow-up from the same domain"
	}
	return model.RelAmplifies, "later coverage of the claim"
}

// Validate checks structural invariants: non-empty unique node ids, non-empty
// URLs, and edges referencing existing nodes. A violation is returned wrapped
// in ErrInvalidGraph.
func Validate(g *model.Graph) error {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}
		if n.URL == "" {
			return fmt.Errorf("%w: node %s has empty url", ErrInvalidGraph, n.ID)
		}
		if ids[n.ID] {
			return fmt.Errorf("%w: duplicate node id %s", ErrInvalidGraph, n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range g.Edges {
		if !ids[e.From] {
			return fmt.Errorf("%w: edge %s references missing node %s", ErrInvalidGraph, e.ID, e.From)
		}
		if !ids[e.To] {
			return fmt.Errorf("%w: edge %s references missing node %s", ErrInvalidGraph, e.ID, e.To)
		}
	}
	return nil
}

// timestampOrder returns node indices sorted by timestamp ascending, ties
// broken by original input order. Nodes without a timestamp sort after all
// dated nodes so an undated item can never become the origin.
func timestampOrder(nodes []model.Node) []int {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := nodes[order[a]].Timestamp, nodes[order[b]].Timestamp
		if ta.IsZero() != tb.IsZero() {
			return !ta.IsZero()
		}
		return ta.Before(tb)
	})
	return order
}

func nodeText(n model.Node) string {
	return strings.TrimSpace(n.Title + " " + n.Snippet)
}

func hasDebunkerLanguage(text string) bool {
	return containsAny(text, debunkerKeywords)
}

func isDebunkerDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range debunkerDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func hasAmplifierLanguage(text string) bool {
	return containsAny(text, amplifierKeywords)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
