// Package graph builds and queries the typed dependency graph of a mapping
// specification: sources, derived variables, and constraints as nodes,
// their declared inputs as edges.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/spec"
)

// MissingDependenciesError reports input ids referenced by some node but
// never defined as a source, derived variable, or constraint.
type MissingDependenciesError struct {
	Missing []string // sorted
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("dependencies referenced but not defined: %s", strings.Join(e.Missing, ", "))
}

// CycleDetectedError reports the first (minimal, DFS-order) cycle found,
// rotated to start at its lexicographically smallest node.
type CycleDetectedError struct {
	Cycle     []string // node ids, not repeating the start node at the end
	EdgeTypes []string // sorted, unique "type->type" labels
}

func (e *CycleDetectedError) Error() string {
	path := strings.Join(e.Cycle, " -> ") + " -> " + e.Cycle[0]
	msg := fmt.Sprintf("cycle detected in dependency graph:\n  cycle: %s", path)
	if len(e.EdgeTypes) > 0 {
		msg += fmt.Sprintf("\n  edge types: %s", strings.Join(e.EdgeTypes, ", "))
	}
	return msg
}

// DependencyGraph is the dependency graph of a mapping spec: node -> its
// declared inputs (edges), and the reverse (what depends on a node).
type DependencyGraph struct {
	Spec         *spec.MappingSpec
	Nodes        map[string]bool
	Edges        map[string]map[string]bool // node -> set of dependencies
	ReverseEdges map[string]map[string]bool // dependency -> set of dependents
}

// Build constructs the dependency graph, returning *MissingDependenciesError
// or *CycleDetectedError if the spec is structurally invalid.
func Build(s *spec.MappingSpec) (*DependencyGraph, error) {
	g := &DependencyGraph{
		Spec:         s,
		Nodes:        make(map[string]bool),
		Edges:        make(map[string]map[string]bool),
		ReverseEdges: make(map[string]map[string]bool),
	}

	for _, src := range s.Sources {
		g.Nodes[src.ID] = true
		g.Edges[src.ID] = map[string]bool{}
	}
	for _, d := range s.Derived {
		g.Nodes[d.ID] = true
		deps := map[string]bool{}
		for _, in := range d.Inputs {
			deps[in] = true
			g.addReverse(in, d.ID)
		}
		g.Edges[d.ID] = deps
	}
	for _, c := range s.Constraints {
		g.Nodes[c.ID] = true
		deps := map[string]bool{}
		for _, in := range c.Inputs {
			deps[in] = true
			g.addReverse(in, c.ID)
		}
		g.Edges[c.ID] = deps
	}

	allDeps := map[string]bool{}
	for _, deps := range g.Edges {
		for d := range deps {
			allDeps[d] = true
		}
	}
	var missing []string
	for d := range allDeps {
		if !g.Nodes[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingDependenciesError{Missing: missing}
	}

	if cycle := g.detectCycle(); cycle != nil {
		edgeTypes := edgeTypesFor(cycle)
		return nil, &CycleDetectedError{Cycle: cycle, EdgeTypes: edgeTypes}
	}

	return g, nil
}

func (g *DependencyGraph) addReverse(from, to string) {
	if g.ReverseEdges[from] == nil {
		g.ReverseEdges[from] = map[string]bool{}
	}
	g.ReverseEdges[from][to] = true
}

const (
	white = 0
	gray  = 1
	black = 2
)

// detectCycle runs tri-color DFS over nodes in sorted order, following
// dependents (reverse edges) as the original does, returning the first
// cycle found rotated to start at its lexicographically smallest node.
func (g *DependencyGraph) detectCycle() []string {
	color := make(map[string]int, len(g.Nodes))
	for n := range g.Nodes {
		color[n] = white
	}

	var nodesSorted []string
	for n := range g.Nodes {
		nodesSorted = append(nodesSorted, n)
	}
	sort.Strings(nodesSorted)

	var found []string

	var dfs func(node string, path []string) bool
	dfs = func(node string, path []string) bool {
		color[node] = gray
		path = append(path, node)

		var dependents []string
		for d := range g.ReverseEdges[node] {
			dependents = append(dependents, d)
		}
		sort.Strings(dependents)

		for _, dep := range dependents {
			switch color[dep] {
			case white:
				if dfs(dep, path) {
					return true
				}
			case gray:
				start := indexOf(path, dep)
				cycle := append(append([]string(nil), path[start:]...), dep)
				found = normalizeCycle(cycle)
				return true
			}
		}

		color[node] = black
		return false
	}

	for _, n := range nodesSorted {
		if color[n] == white {
			if dfs(n, nil) {
				break
			}
		}
	}

	return found
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// normalizeCycle rotates a cycle (closing node repeated at the end) to
// start at its lexicographically smallest node, then strips the repeated
// closing node.
func normalizeCycle(cycle []string) []string {
	body := cycle[:len(cycle)-1]
	minIdx := 0
	for i, n := range body {
		if n < body[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]string(nil), body[minIdx:]...), body[:minIdx]...)
	return rotated
}

func nodeType(id string) string {
	switch {
	case strings.HasPrefix(id, "s:"):
		return "source"
	case strings.HasPrefix(id, "d:"), strings.HasPrefix(id, "v:"):
		return "derived"
	case strings.HasPrefix(id, "c:"):
		return "constraint"
	default:
		return "unknown"
	}
}

func edgeTypesFor(cycle []string) []string {
	seen := map[string]bool{}
	for i := range cycle {
		from := cycle[i]
		to := cycle[(i+1)%len(cycle)]
		seen[nodeType(from)+"->"+nodeType(to)] = true
	}
	var out []string
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// GetDependencies returns the direct dependencies (declared inputs) of node.
func (g *DependencyGraph) GetDependencies(node string) map[string]bool {
	return g.Edges[node]
}

// GetDependents returns the nodes that directly depend on node.
func (g *DependencyGraph) GetDependents(node string) map[string]bool {
	return g.ReverseEdges[node]
}

// GetTransitiveDependencies returns every node reachable by following
// dependency edges from node, excluding node itself.
func (g *DependencyGraph) GetTransitiveDependencies(node string) map[string]bool {
	visited := map[string]bool{}
	stack := []string{node}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for dep := range g.Edges[cur] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	delete(visited, node)
	return visited
}

// GetTransitiveDependents returns every node that transitively depends on
// node, excluding node itself.
func (g *DependencyGraph) GetTransitiveDependents(node string) map[string]bool {
	visited := map[string]bool{}
	stack := []string{node}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for dep := range g.ReverseEdges[cur] {
			if !visited[dep] {
				stack = append(stack, dep)
			}
		}
	}
	delete(visited, node)
	return visited
}

// GetDependencyPath returns the shortest path (by dependent edges) from
// fromNode to toNode via BFS, or nil if no path exists.
func (g *DependencyGraph) GetDependencyPath(fromNode, toNode string) []string {
	if fromNode == toNode {
		return []string{fromNode}
	}

	type item struct {
		node string
		path []string
	}
	queue := []item{{fromNode, []string{fromNode}}}
	visited := map[string]bool{fromNode: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		var dependents []string
		for d := range g.ReverseEdges[cur.node] {
			dependents = append(dependents, d)
		}
		sort.Strings(dependents)

		for _, dep := range dependents {
			if dep == toNode {
				return append(append([]string(nil), cur.path...), dep)
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, item{dep, append(append([]string(nil), cur.path...), dep)})
			}
		}
	}
	return nil
}

const (
	maxAlternativePaths = 10
	extraPathLength      = 10
)

// CountAlternativePaths counts simple paths from fromNode to toNode other
// than one shortest path (a second path of equal length counts), bounded to
// maxAlternativePaths and to a length of shortest+extraPathLength edges.
// Returns 0 if no path exists or only one path exists.
func (g *DependencyGraph) CountAlternativePaths(fromNode, toNode string) int {
	if fromNode == toNode {
		return 0
	}

	shortest := g.GetDependencyPath(fromNode, toNode)
	if shortest == nil {
		return 0
	}
	maxLength := (len(shortest) - 1) + extraPathLength

	var countPaths func(current string, visited map[string]bool, remaining int) int
	countPaths = func(current string, visited map[string]bool, remaining int) int {
		if current == toNode {
			return 1
		}
		if len(visited) >= maxLength {
			return 0
		}

		var dependents []string
		for d := range g.ReverseEdges[current] {
			dependents = append(dependents, d)
		}
		sort.Strings(dependents)

		count := 0
		for _, dep := range dependents {
			if visited[dep] {
				continue
			}
			newVisited := make(map[string]bool, len(visited)+1)
			for k := range visited {
				newVisited[k] = true
			}
			newVisited[dep] = true
			count += countPaths(dep, newVisited, remaining-count)
			if count >= remaining {
				return remaining
			}
		}
		return count
	}

	total := countPaths(fromNode, map[string]bool{fromNode: true}, maxAlternativePaths+1)
	alt := total - 1
	if alt < 0 {
		alt = 0
	}
	if alt > maxAlternativePaths {
		alt = maxAlternativePaths
	}
	return alt
}
