package dag

import (
	"context"
	"sort"

	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// Build constructs a validated dependency graph from a set of task
// descriptors. An edge exists from task A to task B iff some output key of A
// equals some input key of B. Input keys with no producer must appear in
// runInputs or the build fails with UnresolvedInputError.
func Build(ctx context.Context, tasks []*config.Task, runInputs map[string]string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: starting graph construction.", "tasks", len(tasks))

	graph := &Graph{
		Nodes:     make(map[string]*Node, len(tasks)),
		producers: make(map[string]string),
	}

	// First pass: create all nodes and index producers.
	for _, t := range tasks {
		graph.Nodes[t.ID] = &Node{
			ID:         t.ID,
			Task:       t,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
	}
	for _, t := range tasks {
		for _, out := range t.Outputs {
			if prev, ok := graph.producers[out]; ok {
				ids := [2]string{prev, t.ID}
				if ids[0] > ids[1] {
					ids[0], ids[1] = ids[1], ids[0]
				}
				return nil, &AmbiguousProducerError{Output: out, TaskIDs: ids}
			}
			graph.producers[out] = t.ID
		}
	}
	logger.Debug("Build: node creation complete.", "nodes", len(graph.Nodes))

	// Second pass: derive edges by matching output keys to input keys.
	for _, t := range tasks {
		for _, in := range t.Inputs {
			producer, ok := graph.producers[in]
			switch {
			case ok && producer == t.ID:
				// A task consuming its own output is a one-node cycle.
				return nil, &CycleError{Cycle: []string{t.ID, t.ID}}
			case ok:
				graph.addEdge(producer, t.ID)
			default:
				if _, supplied := runInputs[in]; !supplied {
					return nil, &UnresolvedInputError{TaskID: t.ID, Input: in}
				}
				node := graph.Nodes[t.ID]
				node.ExternalInputs = append(node.ExternalInputs, in)
			}
		}
	}
	logger.Debug("Build: edge derivation complete.")

	if err := graph.detectCycle(); err != nil {
		return nil, err
	}
	logger.Debug("Build: cycle detection passed.")

	graph.order = graph.topologicalOrder()
	logger.Debug("Build: graph construction successful.", "order", graph.order)
	return graph, nil
}

// topologicalOrder computes a deterministic linearization using Kahn's
// algorithm with an ascending-id ready set. Must only be called on an
// acyclic graph.
func (g *Graph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.Nodes))
	var ready []string
	for id, n := range g.Nodes {
		indegree[id] = len(n.Deps)
		if len(n.Deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, depID := range g.DependentsOf(id) {
			indegree[depID]--
			if indegree[depID] == 0 {
				// Insert keeping the ready set sorted by id.
				i := sort.SearchStrings(ready, depID)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = depID
			}
		}
	}
	return order
}
