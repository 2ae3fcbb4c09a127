//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package engine executes workflow runs: it schedules the graph, resolves
// node inputs from upstream outputs, dispatches per-kind handlers, and
// records run and node-execution status.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowforge/flowforge/graph"
	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/telemetry"
	"github.com/flowforge/flowforge/workflow"
)

// Engine coordinates workflow runs. All per-run state (output bags,
// in-degree bookkeeping) lives on the run's own coordinator, so one Engine
// serves any number of concurrent runs.
type Engine struct {
	store       workflow.Store
	registry    *Registry
	nodeTimeout time.Duration
	maxParallel int
}

// Option configures the Engine.
type Option func(*Engine)

// WithNodeTimeout bounds each handler invocation. Zero means no per-node
// timeout: a stalled external call then blocks the nodes depending on it.
func WithNodeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.nodeTimeout = d
	}
}

// WithMaxParallel allows up to n nodes whose producers are all terminal to
// execute concurrently. Values below 2 keep the default serial order.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		e.maxParallel = n
	}
}

// New creates an Engine on the given store and handler registry.
func New(store workflow.Store, registry *Registry, opts ...Option) *Engine {
	e := &Engine{store: store, registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle is the caller's grip on a started run.
type Handle struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// RunID returns the run's identifier.
func (h *Handle) RunID() string {
	return h.runID
}

// Cancel stops the run. Nodes already executing finish their handler call;
// nothing new starts and the run finalizes as CANCELLED.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the run's final status has been written.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// StartRun validates the workflow, creates the run and its PENDING node
// executions, and continues execution in the background. It returns as soon
// as the records exist; poll the store (or wait on the handle) for progress.
func (e *Engine) StartRun(ctx context.Context, workflowID string, inputs map[string]any) (*Handle, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	wf, err := e.store.WorkflowGraph(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", workflowID, err)
	}

	run := &workflow.Run{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		Status:     workflow.RunPending,
		StartedAt:  time.Now(),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	execs := make(map[string]*workflow.NodeExecution, len(wf.Nodes))
	records := make([]*workflow.NodeExecution, 0, len(wf.Nodes))
	for _, node := range wf.Nodes {
		exec := &workflow.NodeExecution{
			ID:     uuid.NewString(),
			RunID:  run.ID,
			NodeID: node.ID,
			Status: workflow.ExecutionPending,
		}
		execs[node.ID] = exec
		records = append(records, exec)
	}
	if err := e.store.CreateNodeExecutions(ctx, records); err != nil {
		return nil, fmt.Errorf("create node executions: %w", err)
	}

	// The run outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &Handle{runID: run.ID, cancel: cancel, done: make(chan struct{})}
	g := graph.Build(wf.Nodes, wf.Edges)
	go e.run(runCtx, g, run, execs, inputs, handle)
	return handle, nil
}

// run owns a single run from scheduling to the final status write.
func (e *Engine) run(ctx context.Context, g *graph.Graph, run *workflow.Run,
	execs map[string]*workflow.NodeExecution, runInputs map[string]any, handle *Handle) {
	defer close(handle.done)
	defer handle.cancel()

	ctx, span := telemetry.Tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		telemetry.KeyRunID.String(run.ID),
		telemetry.KeyWorkflowID.String(run.WorkflowID),
	))
	defer span.End()

	order, err := g.TopologicalOrder()
	if err != nil {
		// A cyclic graph is a graph error: fail the run before executing
		// anything rather than leaving the unreachable nodes PENDING forever.
		log.Errorf("engine: run %s: %v", run.ID, err)
		e.finish(ctx, run, span, workflow.RunFailed)
		return
	}

	run.Status = workflow.RunRunning
	if err := e.store.UpdateRun(ctx, run); err != nil {
		log.Errorf("engine: run %s: mark running: %v", run.ID, err)
	}

	outputs := make(map[string]map[string]any, len(order))
	if e.maxParallel > 1 {
		e.runParallel(ctx, g, run, execs, runInputs, outputs)
	} else {
		e.runSerial(ctx, g, order, run, execs, runInputs, outputs)
	}

	// The run completes once every node was attempted, independent of
	// individual node outcomes. Callers needing true success inspect the
	// per-node statuses.
	status := workflow.RunFailed
	switch {
	case ctx.Err() != nil:
		status = workflow.RunCancelled
	case len(outputs) == len(order):
		status = workflow.RunCompleted
	}
	e.finish(ctx, run, span, status)
}

// runSerial executes nodes strictly in topological order, one at a time.
func (e *Engine) runSerial(ctx context.Context, g *graph.Graph, order []string,
	run *workflow.Run, execs map[string]*workflow.NodeExecution,
	runInputs map[string]any, outputs map[string]map[string]any) {
	for _, nodeID := range order {
		if ctx.Err() != nil {
			return
		}
		node, ok := g.Node(nodeID)
		if !ok {
			continue
		}
		inputs := resolveInputs(g, node, runInputs, outputs)
		if bag := e.invokeNode(ctx, run, node, execs[nodeID], inputs); bag != nil {
			outputs[nodeID] = bag
		}
	}
}

// invokeNode runs one node's handler with failure containment and records
// the execution's status transitions. It returns the node's contribution to
// the shared output map: the handler's bag on success, an error bag on
// failure, or nil when the node was never attempted.
func (e *Engine) invokeNode(ctx context.Context, run *workflow.Run,
	node workflow.Node, exec *workflow.NodeExecution, inputs map[string]any) map[string]any {
	if ctx.Err() != nil {
		return nil
	}

	ctx, span := telemetry.Tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		telemetry.KeyRunID.String(run.ID),
		telemetry.KeyNodeID.String(node.ID),
		telemetry.KeyNodeKind.String(string(node.Kind)),
	))
	defer span.End()

	started := time.Now()
	exec.Status = workflow.ExecutionRunning
	exec.StartedAt = &started
	exec.Inputs = inputs
	if err := e.store.UpdateNodeExecution(ctx, exec); err != nil {
		log.Errorf("engine: run %s node %s: mark running: %v", run.ID, node.ID, err)
	}

	out, err := e.executeHandler(ctx, node, inputs)

	completed := time.Now()
	exec.CompletedAt = &completed
	exec.Duration = completed.Sub(started)

	var bag map[string]any
	if err != nil {
		log.Warnf("engine: run %s node %s (%s) failed: %v", run.ID, node.ID, node.Kind, err)
		exec.Status = workflow.ExecutionFailed
		exec.Error = err.Error()
		// The error bag carries none of the fields input resolution
		// extracts, so dependents silently receive no data from this branch.
		bag = map[string]any{"error": err.Error(), "status": "failed"}
	} else {
		exec.Status = workflow.ExecutionCompleted
		exec.Outputs = out
		bag = out
	}
	span.SetAttributes(telemetry.KeyStatus.String(string(exec.Status)))
	if err := e.store.UpdateNodeExecution(ctx, exec); err != nil {
		log.Errorf("engine: run %s node %s: record result: %v", run.ID, node.ID, err)
	}
	return bag
}

// executeHandler dispatches to the node kind's handler, applying the
// per-node timeout and converting handler panics into errors.
func (e *Engine) executeHandler(ctx context.Context, node workflow.Node,
	inputs map[string]any) (out map[string]any, err error) {
	if e.nodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.nodeTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("node handler panicked: %v", r)
		}
	}()
	return e.registry.Handler(node.Kind).Execute(ctx, inputs, node.Config)
}

// finish writes the run's terminal status. The write uses a detached context
// so a cancelled run still records its outcome.
func (e *Engine) finish(ctx context.Context, run *workflow.Run, span trace.Span, status workflow.RunStatus) {
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	span.SetAttributes(telemetry.KeyStatus.String(string(status)))
	if err := e.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Errorf("engine: run %s: record final status %s: %v", run.ID, status, err)
		return
	}
	log.Infof("engine: run %s finished: %s", run.ID, status)
}
