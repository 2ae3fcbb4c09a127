//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package graph turns flat workflow node and edge records into an executable
// dependency graph and computes its execution order.
package graph

import (
	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/workflow"
)

// Graph is the adjacency view of one workflow, built once per run. It owns
// its maps; two runs of the same workflow never share graph state.
type Graph struct {
	// nodes preserves the input record order; it seeds scheduling ties.
	nodes []workflow.Node
	index map[string]workflow.Node
	// adjacency maps a node to its dependents in edge record order.
	adjacency map[string][]string
	inDegree  map[string]int
	// edges holds only edges whose source and target both exist.
	edges []workflow.Edge
	// incoming maps a node to the valid edges targeting it, in edge record
	// order.
	incoming map[string][]workflow.Edge
}

// Build constructs the adjacency list and in-degree table from flat records.
// Edges referencing a missing source or target node are dropped before
// scheduling. O(V+E).
func Build(nodes []workflow.Node, edges []workflow.Edge) *Graph {
	g := &Graph{
		nodes:     nodes,
		index:     make(map[string]workflow.Node, len(nodes)),
		adjacency: make(map[string][]string, len(nodes)),
		inDegree:  make(map[string]int, len(nodes)),
		incoming:  make(map[string][]workflow.Edge),
	}
	for _, node := range nodes {
		g.index[node.ID] = node
		g.adjacency[node.ID] = nil
		g.inDegree[node.ID] = 0
	}
	for _, edge := range edges {
		if _, ok := g.index[edge.SourceID]; !ok {
			log.Warnf("graph: dropping edge %s: unknown source node %s", edge.ID, edge.SourceID)
			continue
		}
		if _, ok := g.index[edge.TargetID]; !ok {
			log.Warnf("graph: dropping edge %s: unknown target node %s", edge.ID, edge.TargetID)
			continue
		}
		g.edges = append(g.edges, edge)
		g.adjacency[edge.SourceID] = append(g.adjacency[edge.SourceID], edge.TargetID)
		g.inDegree[edge.TargetID]++
		g.incoming[edge.TargetID] = append(g.incoming[edge.TargetID], edge)
	}
	return g
}

// Nodes returns the node records in input order.
func (g *Graph) Nodes() []workflow.Node {
	return g.nodes
}

// Node returns a node record by id.
func (g *Graph) Node(id string) (workflow.Node, bool) {
	node, ok := g.index[id]
	return node, ok
}

// Edges returns the valid edges in record order.
func (g *Graph) Edges() []workflow.Edge {
	return g.edges
}

// Incoming returns the valid edges targeting nodeID, in record order.
func (g *Graph) Incoming(nodeID string) []workflow.Edge {
	return g.incoming[nodeID]
}

// Dependents returns the adjacency-list successors of nodeID.
func (g *Graph) Dependents(nodeID string) []string {
	return g.adjacency[nodeID]
}

// InDegree returns the number of valid incoming edges of nodeID.
func (g *Graph) InDegree(nodeID string) int {
	return g.inDegree[nodeID]
}
