// Package depgraph holds task dependency edges and rejects edges that would
// close a cycle.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"agencyops/internal/domain"
)

// CycleError is returned when adding an edge would make the graph cyclic.
// Path lists the task ids along the cycle, starting and ending on the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// Graph is an adjacency list keyed by parent task id.
type Graph struct {
	Adj map[string][]string
}

// Build indexes edges parent -> dependent. Duplicate edges are collapsed.
func Build(edges []domain.TaskDependency) *Graph {
	g := &Graph{Adj: make(map[string][]string)}
	seen := make(map[[2]string]bool)
	for _, e := range edges {
		key := [2]string{e.ParentTaskID, e.DependentTaskID}
		if seen[key] {
			continue
		}
		seen[key] = true
		g.Adj[e.ParentTaskID] = append(g.Adj[e.ParentTaskID], e.DependentTaskID)
	}
	for k := range g.Adj {
		sort.Strings(g.Adj[k])
	}
	return g
}

func (g *Graph) nodes() []string {
	set := make(map[string]struct{})
	for from, tos := range g.Adj {
		set[from] = struct{}{}
		for _, to := range tos {
			set[to] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectCycle returns a cycle path if one exists, or nil if the graph is
// acyclic. DFS with white/gray/black coloring.
func (g *Graph) DetectCycle() []string {
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

	for _, id := range g.nodes() {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// CheckEdge reports whether candidate can be added to existing without
// creating a cycle. Self edges are cycles of length one.
func CheckEdge(existing []domain.TaskDependency, candidate domain.TaskDependency) error {
	if candidate.ParentTaskID == candidate.DependentTaskID {
		return &CycleError{Path: []string{candidate.ParentTaskID, candidate.DependentTaskID}}
	}
	edges := make([]domain.TaskDependency, 0, len(existing)+1)
	edges = append(edges, existing...)
	edges = append(edges, candidate)
	if cycle := Build(edges).DetectCycle(); cycle != nil {
		return &CycleError{Path: cycle}
	}
	return nil
}
