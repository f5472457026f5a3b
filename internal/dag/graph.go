package dag

import (
	"sort"

	"github.com/vk/pipegrid/internal/config"
)

// Graph is the immutable dependency graph built from a set of task
// descriptors. After Build returns, the graph is read-only and may be shared
// across goroutines without locking.
type Graph struct {
	// Nodes stores all nodes in the graph, keyed by task id.
	Nodes map[string]*Node
	// producers maps each declared output key to the id of its sole producer.
	producers map[string]string
	// order is a valid topological linearization with ascending-id tie-break.
	order []string
}

// Node is a single vertex in the graph: one task descriptor plus its
// adjacency sets.
type Node struct {
	// ID is the task id.
	ID string
	// Task is the immutable descriptor this node executes.
	Task *config.Task
	// Deps holds the nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node (successors).
	Dependents map[string]*Node
	// ExternalInputs are the input keys satisfied by run inputs rather than
	// by an upstream task.
	ExternalInputs []string
}

// Producer returns the id of the task producing the given output key.
func (g *Graph) Producer(key string) (string, bool) {
	id, ok := g.producers[key]
	return id, ok
}

// TopologicalOrder returns a linearization consistent with every edge. Among
// tasks whose relative order is unconstrained, ascending task id wins, so
// the order is deterministic for a given task set.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// DependentsOf returns the ids of the nodes that depend on the given node,
// in ascending order.
func (g *Graph) DependentsOf(id string) []string {
	n, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(n.Dependents))
	for depID := range n.Dependents {
		out = append(out, depID)
	}
	sort.Strings(out)
	return out
}

// addEdge records that toID depends on fromID.
func (g *Graph) addEdge(fromID, toID string) {
	fromNode := g.Nodes[fromID]
	toNode := g.Nodes[toID]
	toNode.Deps[fromID] = fromNode
	fromNode.Dependents[toID] = toNode
}

// detectCycle checks the graph for cycles using depth-first search with the
// classic three node sets: permanently visited, on the current recursion
// stack, and unvisited. Nodes are visited in ascending id order so the
// reported cycle is deterministic.
func (g *Graph) detectCycle() *CycleError {
	permanent := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(n *Node) *CycleError
	visit = func(n *Node) *CycleError {
		if permanent[n.ID] {
			return nil
		}
		if onStack[n.ID] {
			// Found a back edge; slice the recorded stack into a cycle path.
			start := 0
			for i, id := range stack {
				if id == n.ID {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, stack[start:]...), n.ID)
			return &CycleError{Cycle: cycle}
		}

		onStack[n.ID] = true
		stack = append(stack, n.ID)

		for _, depID := range g.DependentsOf(n.ID) {
			if err := visit(g.Nodes[depID]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, n.ID)
		permanent[n.ID] = true
		return nil
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !permanent[id] {
			if err := visit(g.Nodes[id]); err != nil {
				return err
			}
		}
	}
	return nil
}
