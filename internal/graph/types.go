package graph

// Node is one schedulable unit fed into a TaskGraph.
type Node struct {
	ID           string
	Title        string
	Priority     int
	BlockedBy    []string // IDs this node depends on
	Blocks       []string // IDs that depend on this node
	DurationSecs float64  // working seconds, 0 means "treat as 1"
	IsCritical   bool
}

// TaskGraph is a directed acyclic graph of nodes keyed by ID.
type TaskGraph struct {
	Tasks  map[string]*Node
	Adj    map[string][]string // node -> nodes it blocks
	RevAdj map[string][]string // node -> nodes that block it
	Roots  []string            // nodes with no blockers
	Leaves []string            // nodes that block nothing
}
