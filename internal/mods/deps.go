// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"fmt"
	"strings"
)

// DependencyCycleError indicates that the dependency graph contains a cycle,
// preventing a valid enable order.
type DependencyCycleError struct {
	// Cycle contains mods participating in the cycle (enough of them to
	// identify the problem, not necessarily all).
	Cycle []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// depGraph is a directed graph over mod names. An edge from A to B means A
// must be enabled before B.
type depGraph struct {
	adjacency map[string][]string
	nodes     []string
	nodeSet   map[string]bool
}

func newDepGraph() *depGraph {
	return &depGraph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

func (g *depGraph) addNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

func (g *depGraph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// topologicalSort orders the graph with Kahn's algorithm. The order is
// deterministic: nodes at the same level appear in insertion order. Returns
// DependencyCycleError when no valid order exists.
func (g *depGraph) topologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &DependencyCycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// EnableOrder returns the transitive dependencies of name, topologically
// sorted so that enabling them in order satisfies every dependency before
// its dependents. The mod itself is the final element. Unknown dependencies
// are included so callers can report them.
func EnableOrder(c *Catalog, name string) ([]string, error) {
	graph := newDepGraph()
	seen := map[string]bool{}

	var visit func(string)
	visit = func(current string) {
		if seen[current] {
			return
		}
		seen[current] = true
		graph.addNode(current)
		for _, dep := range c.Get(current).Depends {
			graph.addEdge(dep, current)
			visit(dep)
		}
	}
	visit(strings.ToLower(name))

	return graph.topologicalSort()
}

// Dependents returns every known mod that directly depends on name, in
// sorted catalog order.
func Dependents(c *Catalog, name string) []string {
	target := strings.ToLower(name)
	var out []string
	for _, other := range c.Names() {
		for _, dep := range c.Get(other).Depends {
			if dep == target {
				out = append(out, other)
				break
			}
		}
	}
	return out
}
