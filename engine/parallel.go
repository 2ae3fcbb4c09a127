//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"

	"github.com/panjf2000/ants/v2"

	"github.com/flowforge/flowforge/graph"
	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/workflow"
)

type nodeResult struct {
	nodeID string
	bag    map[string]any
}

// runParallel executes independent branches concurrently on a worker pool.
// The coordinator goroutine is the sole owner of the output map and the
// in-degree bookkeeping: workers only run handlers and report back, and a
// node launches only once every one of its producers is terminal.
func (e *Engine) runParallel(ctx context.Context, g *graph.Graph, run *workflow.Run,
	execs map[string]*workflow.NodeExecution, runInputs map[string]any,
	outputs map[string]map[string]any) {
	pool, err := ants.NewPool(e.maxParallel)
	if err != nil {
		log.Errorf("engine: run %s: worker pool: %v, falling back to serial", run.ID, err)
		order, orderErr := g.TopologicalOrder()
		if orderErr != nil {
			return
		}
		e.runSerial(ctx, g, order, run, execs, runInputs, outputs)
		return
	}
	defer pool.Release()

	nodes := g.Nodes()
	remaining := make(map[string]int, len(nodes))
	for _, node := range nodes {
		remaining[node.ID] = g.InDegree(node.ID)
	}

	results := make(chan nodeResult, len(nodes))
	inflight := 0
	launch := func(nodeID string) {
		node, ok := g.Node(nodeID)
		if !ok {
			return
		}
		// Inputs are resolved on the coordinator: every producer bag is
		// already published and the output map is not mutated mid-read.
		inputs := resolveInputs(g, node, runInputs, outputs)
		exec := execs[nodeID]
		inflight++
		if err := pool.Submit(func() {
			results <- nodeResult{nodeID: nodeID, bag: e.invokeNode(ctx, run, node, exec, inputs)}
		}); err != nil {
			inflight--
			log.Errorf("engine: run %s node %s: submit: %v", run.ID, nodeID, err)
		}
	}

	for _, node := range nodes {
		if remaining[node.ID] == 0 {
			launch(node.ID)
		}
	}

	for inflight > 0 {
		res := <-results
		inflight--
		if res.bag != nil {
			outputs[res.nodeID] = res.bag
		}
		if ctx.Err() != nil {
			// Drain what is running; start nothing new.
			continue
		}
		for _, dep := range g.Dependents(res.nodeID) {
			remaining[dep]--
			if remaining[dep] == 0 {
				launch(dep)
			}
		}
	}
}
