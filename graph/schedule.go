//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when the graph contains a cycle and no complete
// topological order exists.
var ErrCycle = errors.New("workflow graph contains a cycle")

// TopologicalOrder computes an execution order with Kahn's algorithm. The
// queue is seeded with every zero in-degree node in node record order, and
// ties are broken by that order, not by any semantic priority.
//
// If the graph is cyclic no complete order exists; the partial order is
// returned alongside ErrCycle so callers can report which nodes were
// reachable.
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.inDegree))
	for id, d := range g.inDegree {
		inDegree[id] = d
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range g.adjacency[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) < len(g.nodes) {
		return order, fmt.Errorf("%d of %d nodes unreachable: %w",
			len(g.nodes)-len(order), len(g.nodes), ErrCycle)
	}
	return order, nil
}
