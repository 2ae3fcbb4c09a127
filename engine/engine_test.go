//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/workflow"
	"github.com/flowforge/flowforge/workflow/inmemory"
)

func waitRun(t *testing.T, handle *Handle) {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func saveWorkflow(t *testing.T, store *inmemory.Service, wf *workflow.Workflow) {
	t.Helper()
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))
}

func executionsByNode(t *testing.T, store *inmemory.Service, runID string) map[string]*workflow.NodeExecution {
	t.Helper()
	execs, err := store.ListNodeExecutions(context.Background(), runID)
	require.NoError(t, err)
	byNode := make(map[string]*workflow.NodeExecution, len(execs))
	for _, exec := range execs {
		byNode[exec.NodeID] = exec
	}
	return byNode
}

func TestRunTextToLLM(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "T", Kind: workflow.KindText, Config: map[string]any{"content": "Hi"}},
			{ID: "L", Kind: workflow.KindLLM, Config: map[string]any{}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "T", TargetID: "L", TargetHandle: "user_message"},
		},
	})

	gen := &stubGenerator{reply: "Hello back"}
	eng := New(store, NewRegistry(gen, "default-model"))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	assert.Equal(t, "User: Hi", gen.lastPrompt)
	assert.Equal(t, 1, gen.textCalls)
	assert.Zero(t, gen.visionCalls)

	byNode := executionsByNode(t, store, handle.RunID())
	require.Len(t, byNode, 2)
	assert.Equal(t, workflow.ExecutionCompleted, byNode["T"].Status)
	assert.Equal(t, workflow.ExecutionCompleted, byNode["L"].Status)
	assert.Equal(t, "Hello back", byNode["L"].Outputs["output"])
	assert.Equal(t, "Hi", byNode["L"].Inputs["user_message"], "resolved inputs are snapshotted")
	assert.NotNil(t, byNode["L"].CompletedAt)

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunVisionPath(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "img", Kind: workflow.KindImage, Config: map[string]any{"imageUrl": pngURL}},
			{ID: "llm", Kind: workflow.KindLLM, Config: map[string]any{"prompt": "describe"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "img", TargetID: "llm", TargetHandle: "images"},
		},
	})

	gen := &stubGenerator{reply: "a picture"}
	eng := New(store, NewRegistry(gen, "m"))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	assert.Equal(t, 1, gen.visionCalls)
	assert.Equal(t, []string{pngURL}, gen.lastImages)
}

func TestRunFailedNodeStillCompletesRun(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "T", Kind: workflow.KindText, Config: map[string]any{"content": "prompt"}},
			{ID: "L", Kind: workflow.KindLLM, Config: map[string]any{}},
			{ID: "after", Kind: workflow.KindText, Config: map[string]any{"content": "still runs"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "T", TargetID: "L", TargetHandle: "userPrompt"},
			{ID: "e2", SourceID: "L", TargetID: "after", TargetHandle: "context"},
		},
	})

	gen := &stubGenerator{err: errors.New("provider down")}
	eng := New(store, NewRegistry(gen, "m"))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	byNode := executionsByNode(t, store, handle.RunID())
	assert.Equal(t, workflow.ExecutionFailed, byNode["L"].Status)
	assert.NotEmpty(t, byNode["L"].Error)
	assert.Equal(t, workflow.ExecutionCompleted, byNode["after"].Status,
		"dependents of a failed node still execute with absent input")
	assert.NotContains(t, byNode["after"].Inputs, "context",
		"the failed producer contributes no data")

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, run.Status,
		"a run completes once every node was attempted")
}

func TestRunExtractSentinelFeedsNothingDownstream(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "E", Kind: workflow.KindExtract, Config: map[string]any{}},
			{ID: "L", Kind: workflow.KindLLM, Config: map[string]any{"prompt": "describe"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "E", TargetID: "L", TargetHandle: "images"},
		},
	})

	gen := &stubGenerator{reply: "nothing to see"}
	eng := New(store, NewRegistry(gen, "m"))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	byNode := executionsByNode(t, store, handle.RunID())
	assert.Equal(t, workflow.ExecutionCompleted, byNode["E"].Status)
	assert.Equal(t, "not_extracted", byNode["E"].Outputs["status"])

	assert.Equal(t, 1, gen.textCalls, "no usable images means the text path")
	assert.Zero(t, gen.visionCalls)
}

func TestRunCycleFailsUpFront(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "a", Kind: workflow.KindText, Config: map[string]any{"content": "x"}},
			{ID: "b", Kind: workflow.KindText, Config: map[string]any{"content": "y"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "a", TargetID: "b", TargetHandle: "p"},
			{ID: "e2", SourceID: "b", TargetID: "a", TargetHandle: "p"},
		},
	})

	eng := New(store, NewRegistry(nil, ""))
	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunFailed, run.Status, "a cyclic graph fails the run up front")

	byNode := executionsByNode(t, store, handle.RunID())
	assert.Equal(t, workflow.ExecutionPending, byNode["a"].Status, "nothing executes")
	assert.Equal(t, workflow.ExecutionPending, byNode["b"].Status)
}

func TestRunUnknownWorkflow(t *testing.T) {
	store := inmemory.NewService()
	eng := New(store, NewRegistry(nil, ""))

	_, err := eng.StartRun(context.Background(), "ghost", nil)
	require.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

func TestRunParallelDiamond(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "root", Kind: workflow.KindText, Config: map[string]any{"content": "seed"}},
			{ID: "left", Kind: workflow.KindText, Config: map[string]any{"content": "L"}},
			{ID: "right", Kind: workflow.KindText, Config: map[string]any{"content": "R"}},
			{ID: "join", Kind: workflow.KindLLM, Config: map[string]any{}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "root", TargetID: "left", TargetHandle: "seed"},
			{ID: "e2", SourceID: "root", TargetID: "right", TargetHandle: "seed"},
			{ID: "e3", SourceID: "left", TargetID: "join", TargetHandle: "userPrompt"},
			{ID: "e4", SourceID: "right", TargetID: "join", TargetHandle: "systemPrompt"},
		},
	})

	gen := &stubGenerator{reply: "joined"}
	eng := New(store, NewRegistry(gen, "m"), WithMaxParallel(4))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	byNode := executionsByNode(t, store, handle.RunID())
	for nodeID, exec := range byNode {
		assert.Equal(t, workflow.ExecutionCompleted, exec.Status, "node %s", nodeID)
	}
	assert.Equal(t, "System: R\n\nUser: L", gen.lastPrompt,
		"the join resolves both branches before executing")

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, run.Status)
}

// blockingGenerator parks until its context is cancelled.
type blockingGenerator struct {
	started chan struct{}
}

func (b *blockingGenerator) GenerateText(ctx context.Context, _, _ string) (string, error) {
	close(b.started)
	<-ctx.Done()
	return "", ctx.Err()
}

func (b *blockingGenerator) GenerateVision(ctx context.Context, _ string, _ []string, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunCancel(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "slow", Kind: workflow.KindLLM, Config: map[string]any{"prompt": "wait"}},
			{ID: "never", Kind: workflow.KindText, Config: map[string]any{"content": "x"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "slow", TargetID: "never", TargetHandle: "p"},
		},
	})

	gen := &blockingGenerator{started: make(chan struct{})}
	eng := New(store, NewRegistry(gen, "m"))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)

	select {
	case <-gen.started:
	case <-time.After(5 * time.Second):
		t.Fatal("llm node never started")
	}
	handle.Cancel()
	waitRun(t, handle)

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCancelled, run.Status)

	byNode := executionsByNode(t, store, handle.RunID())
	assert.Equal(t, workflow.ExecutionPending, byNode["never"].Status,
		"nodes after the cancel point are never attempted")
}

func TestRunNodeTimeout(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewService()
	saveWorkflow(t, store, &workflow.Workflow{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "slow", Kind: workflow.KindLLM, Config: map[string]any{"prompt": "wait"}},
		},
	})

	gen := &blockingGenerator{started: make(chan struct{})}
	eng := New(store, NewRegistry(gen, "m"), WithNodeTimeout(50*time.Millisecond))

	handle, err := eng.StartRun(ctx, "wf", nil)
	require.NoError(t, err)
	waitRun(t, handle)

	byNode := executionsByNode(t, store, handle.RunID())
	assert.Equal(t, workflow.ExecutionFailed, byNode["slow"].Status)
	assert.NotEmpty(t, byNode["slow"].Error)

	run, err := store.GetRun(ctx, handle.RunID())
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, run.Status,
		"a timed-out node still counts as attempted")
}
