package model

import "time"

// Role classifies the structural function of an evidence node in the
// information-propagation graph.
type Role string

const (
	RoleOrigin    Role = "origin"    // Earliest node by timestamp
	RoleAmplifier Role = "amplifier" // Spreads the claim without new information
	RoleModifier  Role = "modifier"  // Alters or extends the claim
	RoleDebunker  Role = "debunker"  // Challenges or fact-checks the claim
	RoleUnknown   Role = "unknown"   // Not yet classified
)

// Relationship classifies a directed edge between two evidence nodes.
type Relationship string

const (
	RelCites       Relationship = "cites"
	RelQuotes      Relationship = "quotes"
	RelContradicts Relationship = "contradicts"
	RelAmplifies   Relationship = "amplifies"
	RelUpdates     Relationship = "updates"
)

// Node is one deduplicated evidence item placed in the attribution graph.
// IDs are stable within a construction run (node_<index>), not globally unique.
type Node struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DomainScore int       `json:"domain_score"`
	Role        Role      `json:"role"`
	Domain      string    `json:"domain,omitempty"`
}

// Edge is a directed relationship between two nodes. From and To must
// reference existing node IDs; an edge referencing a missing node is invalid.
type Edge struct {
	ID           string       `json:"id"`
	From         string       `json:"from"`
	To           string       `json:"to"`
	Relationship Relationship `json:"relationship"`
	Timestamp    time.Time    `json:"timestamp"`
	Evidence     string       `json:"evidence,omitempty"` // Free-text justification
	AIDetected   bool         `json:"ai_detected"`
}

// Cluster is a set of node IDs judged near-duplicate by fuzzy text similarity.
type Cluster struct {
	ID      string  `json:"id"`
	NodeIDs []string `json:"node_ids"`
}

// Graph is the attribution graph built for one verification run.
// Hash is derived solely from claim plus a reduced, sorted view of nodes and
// edges, never from construction timestamps or insertion order.
type Graph struct {
	Claim    string    `json:"claim"`
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Clusters []Cluster `json:"clusters,omitempty"`
	Hash     string    `json:"hash"`
	BuiltAt  time.Time `json:"built_at"`
}

// NodeByID returns the node with the given ID, or nil if absent.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}
