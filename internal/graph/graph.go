package graph

import (
	"sort"
)

// Build constructs a TaskGraph from nodes. Edges pointing at IDs outside the
// node set are ignored. A cycle is reported as a *CycleError.
func Build(nodes []Node) (*TaskGraph, error) {
	g := &TaskGraph{
		Tasks:  make(map[string]*Node),
		Adj:    make(map[string][]string),
		RevAdj: make(map[string][]string),
	}

	for i := range nodes {
		n := nodes[i]
		g.Tasks[n.ID] = &n
	}

	// Both directions are accepted so callers may fill in whichever side they know.
	edgeSet := make(map[[2]string]bool)
	addEdge := func(from, to string) {
		key := [2]string{from, to}
		if edgeSet[key] {
			return
		}
		edgeSet[key] = true
		g.Adj[from] = append(g.Adj[from], to)
		g.RevAdj[to] = append(g.RevAdj[to], from)
	}

	for id, n := range g.Tasks {
		for _, blocked := range n.Blocks {
			if _, ok := g.Tasks[blocked]; ok {
				addEdge(id, blocked)
			}
		}
		for _, blocker := range n.BlockedBy {
			if _, ok := g.Tasks[blocker]; ok {
				addEdge(blocker, id)
			}
		}
	}

	for k := range g.Adj {
		sort.Strings(g.Adj[k])
	}
	for k := range g.RevAdj {
		sort.Strings(g.RevAdj[k])
	}

	for id := range g.Tasks {
		if len(g.RevAdj[id]) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(g.Adj[id]) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
	}
	sort.Strings(g.Roots)
	sort.Strings(g.Leaves)

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, cycleError(cycle)
	}

	return g, nil
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *TaskGraph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.Adj[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	ids := make([]string, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TaskCount returns the number of nodes in the graph.
func (g *TaskGraph) TaskCount() int {
	return len(g.Tasks)
}

// Filter returns a new TaskGraph containing only nodes matching the predicate.
func (g *TaskGraph) Filter(pred func(*Node) bool) (*TaskGraph, error) {
	var filtered []Node
	for _, n := range g.Tasks {
		if pred(n) {
			filtered = append(filtered, *n)
		}
	}
	return Build(filtered)
}
