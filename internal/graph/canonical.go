package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/veritrail/veritrail/internal/model"
)

// canonicalNode is the reduced node view that participates in hashing.
// Timestamps, snippets and domain scores are intentionally excluded so that
// two graphs with identical structural conclusions hash identically even if
// intermediate text differs.
type canonicalNode struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Role  string `json:"role"`
}

type canonicalEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

type canonicalGraph struct {
	Claim string          `json:"claim"`
	Nodes []canonicalNode `json:"nodes"`
	Edges []canonicalEdge `json:"edges"`
}

// CanonicalHash computes the deterministic SHA-256 hash of a graph: lowercase
// hex over the reduced, sorted canonical form. Identical (claim, node set,
// edge set) always produce an identical hash regardless of insertion order.
func CanonicalHash(claim string, nodes []model.Node, edges []model.Edge) (string, error) {
	reduced := canonicalGraph{
		Claim: claim,
		Nodes: make([]canonicalNode, 0, len(nodes)),
		Edges: make([]canonicalEdge, 0, len(edges)),
	}

	for _, n := range nodes {
		reduced.Nodes = append(reduced.Nodes, canonicalNode{
			ID:    n.ID,
			URL:   n.URL,
			Title: n.Title,
			Role:  string(n.Role),
		})
	}
	sort.Slice(reduced.Nodes, func(i, j int) bool {
		return reduced.Nodes[i].ID < reduced.Nodes[j].ID
	})

	for _, e := range edges {
		reduced.Edges = append(reduced.Edges, canonicalEdge{
			From:         e.From,
			To:           e.To,
			Relationship: string(e.Relationship),
		})
	}
	sort.Slice(reduced.Edges, func(i, j int) bool {
		ki := reduced.Edges[i].From + "-" + reduced.Edges[i].To
		kj := reduced.Edges[j].From + "-" + reduced.Edges[j].To
		if ki != kj {
			return ki < kj
		}
		return reduced.Edges[i].Relationship < reduced.Edges[j].Relationship
	})

	data, err := json.Marshal(reduced)
	if err != nil {
		return "", fmt.Errorf("marshal canonical form: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
