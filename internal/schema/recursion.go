package schema

import (
	"fmt"
	"strings"
)

// Recursion is a cycle of entity types through nested fields, such as
// events nesting events through a branch map. Documents of a recursive
// graph can nest without bound, so only the depth ceiling limits them.
type Recursion struct {
	Path    []EntityType `json:"path"`    // Cycle path: ["events", "events"]
	Message string       `json:"message"` // Human-readable description
}

// Recursions reports every strongly connected group of types that can
// reach itself through nested fields. Types and fields are visited in
// declaration order, so the result is deterministic. A graph without
// recursion returns an empty slice.
func (g *Graph) Recursions() []Recursion {
	deps := g.dependencies()
	recursions := []Recursion{}
	for _, scc := range tarjanSCC(g.order, deps) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], deps)) {
			recursions = append(recursions, sccToRecursion(scc, deps))
		}
	}
	return recursions
}

// IsRecursive reports whether t takes part in a recursion.
func (g *Graph) IsRecursive(t EntityType) bool {
	for _, r := range g.Recursions() {
		for _, member := range r.Path {
			if member == t {
				return true
			}
		}
	}
	return false
}

// dependencyGraph maps a type to the types its fields nest, in field
// order without repeats.
type dependencyGraph map[EntityType][]EntityType

func (g *Graph) dependencies() dependencyGraph {
	deps := make(dependencyGraph, len(g.order))
	for _, t := range g.order {
		seen := make(map[EntityType]bool)
		deps[t] = []EntityType{}
		for _, f := range g.defs[t].Fields {
			if !seen[f.Target] {
				seen[f.Target] = true
				deps[t] = append(deps[t], f.Target)
			}
		}
	}
	return deps
}

// hasSelfLoop checks if a type nests itself directly.
func hasSelfLoop(t EntityType, deps dependencyGraph) bool {
	for _, next := range deps[t] {
		if next == t {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// starting from nodes in the given order.
func tarjanSCC(order []EntityType, deps dependencyGraph) [][]EntityType {
	var (
		index   = 0
		stack   []EntityType
		indices = make(map[EntityType]int)
		lowlink = make(map[EntityType]int)
		onStack = make(map[EntityType]bool)
		sccs    [][]EntityType
	)

	var strongConnect func(EntityType)
	strongConnect = func(v EntityType) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it off the stack.
		if lowlink[v] == indices[v] {
			var scc []EntityType
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

	for _, t := range order {
		if _, visited := indices[t]; !visited {
			strongConnect(t)
		}
	}
	return sccs
}

func sccToRecursion(scc []EntityType, deps dependencyGraph) Recursion {
	if len(scc) == 1 {
		t := scc[0]
		return Recursion{
			Path:    []EntityType{t, t},
			Message: fmt.Sprintf("%s nest themselves", t),
		}
	}

	path := cyclePath(scc, deps)
	names := make([]string, len(path))
	for i, t := range path {
		names[i] = string(t)
	}
	return Recursion{
		Path:    path,
		Message: fmt.Sprintf("mutual nesting: %s", strings.Join(names, " -> ")),
	}
}

// cyclePath walks edges inside the SCC from its last-popped member until
// it returns to the start.
func cyclePath(scc []EntityType, deps dependencyGraph) []EntityType {
	members := make(map[EntityType]bool, len(scc))
	for _, t := range scc {
		members[t] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []EntityType{current}
	visited := make(map[EntityType]bool)

	for {
		visited[current] = true

		var next EntityType
		for _, w := range deps[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
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
