package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/routine/internal/ir"
)

// CycleWarning represents a follow-up chain that can re-enter itself.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Polling: a fetch whose on_success schedules the same fetch
//   - Retry: an on_fail that re-dispatches the failed operation
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeChains performs static cycle analysis on follow-up chains.
//
// The algorithm:
//  1. Build operation → follow-up graph from on_success and on_fail
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// A DAG (no cycles) returns an empty warning list. Warnings are ordered by
// their first operation name.
func AnalyzeChains(defs []*ir.OperationDef) []CycleWarning {
	if len(defs) == 0 {
		return []CycleWarning{}
	}

	graph := buildChainGraph(defs)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// chainGraph maps operation name → operations it dispatches.
type chainGraph map[string][]string

// buildChainGraph adds an edge for each follow-up naming a known operation.
// Unknown names are validation errors, not graph edges.
func buildChainGraph(defs []*ir.OperationDef) chainGraph {
	graph := make(chainGraph, len(defs))
	for _, def := range defs {
		graph[def.Name] = []string{}
	}

	for _, def := range defs {
		for _, target := range []string{def.OnSuccess, def.OnFail} {
			if _, known := graph[target]; known && target != "" {
				graph[def.Name] = append(graph[def.Name], target)
			}
		}
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph chainGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so results are deterministic.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph chainGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph chainGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-dispatching operation: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Follow-up cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC, starting at its
// smallest member and following edges inside the SCC back to the start.
func reconstructCyclePath(scc []string, graph chainGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)

	start := sorted[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
