//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/workflow"
)

func TestSaveAndLoadWorkflow(t *testing.T) {
	ctx := context.Background()
	s := NewService()

	wf := &workflow.Workflow{
		ID: "wf-1",
		Nodes: []workflow.Node{
			{ID: "n1", Kind: workflow.KindText, Config: map[string]any{"content": "hi"}},
		},
		Edges: []workflow.Edge{
			{ID: "e1", SourceID: "n1", TargetID: "n2"},
		},
	}
	require.NoError(t, s.SaveWorkflow(ctx, wf))

	got, err := s.WorkflowGraph(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, wf.Nodes, got.Nodes)
	assert.Equal(t, wf.Edges, got.Edges)

	_, err = s.WorkflowGraph(ctx, "ghost")
	require.ErrorIs(t, err, workflow.ErrWorkflowNotFound)
}

func TestSaveWorkflowAssignsID(t *testing.T) {
	s := NewService()
	wf := &workflow.Workflow{}
	require.NoError(t, s.SaveWorkflow(context.Background(), wf))
	assert.NotEmpty(t, wf.ID)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewService()

	run := &workflow.Run{ID: "run-1", WorkflowID: "wf-1", Status: workflow.RunPending, StartedAt: time.Now()}
	require.NoError(t, s.CreateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunPending, got.Status)

	run.Status = workflow.RunRunning
	require.NoError(t, s.UpdateRun(ctx, run))
	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunRunning, got.Status)

	_, err = s.GetRun(ctx, "ghost")
	require.ErrorIs(t, err, workflow.ErrRunNotFound)
	require.ErrorIs(t, s.UpdateRun(ctx, &workflow.Run{ID: "ghost"}), workflow.ErrRunNotFound)
}

func TestNodeExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewService()
	require.NoError(t, s.CreateRun(ctx, &workflow.Run{ID: "run-1"}))

	execs := []*workflow.NodeExecution{
		{RunID: "run-1", NodeID: "a", Status: workflow.ExecutionPending},
		{RunID: "run-1", NodeID: "b", Status: workflow.ExecutionPending},
	}
	require.NoError(t, s.CreateNodeExecutions(ctx, execs))
	assert.NotEmpty(t, execs[0].ID)

	listed, err := s.ListNodeExecutions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a", listed[0].NodeID, "listing preserves insertion order")
	assert.Equal(t, "b", listed[1].NodeID)

	update := &workflow.NodeExecution{
		RunID:   "run-1",
		NodeID:  "a",
		Status:  workflow.ExecutionCompleted,
		Outputs: map[string]any{"output": "done"},
	}
	require.NoError(t, s.UpdateNodeExecution(ctx, update))

	listed, err = s.ListNodeExecutions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.ExecutionCompleted, listed[0].Status)
	assert.Equal(t, "done", listed[0].Outputs["output"])
	assert.Equal(t, execs[0].ID, listed[0].ID, "updates keep the original record id")

	err = s.UpdateNodeExecution(ctx, &workflow.NodeExecution{RunID: "run-1", NodeID: "ghost"})
	require.ErrorIs(t, err, workflow.ErrExecutionNotFound)
	err = s.UpdateNodeExecution(ctx, &workflow.NodeExecution{RunID: "ghost", NodeID: "a"})
	require.ErrorIs(t, err, workflow.ErrExecutionNotFound)
}

func TestListNodeExecutionsEmptyRun(t *testing.T) {
	ctx := context.Background()
	s := NewService()
	require.NoError(t, s.CreateRun(ctx, &workflow.Run{ID: "run-1"}))

	listed, err := s.ListNodeExecutions(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = s.ListNodeExecutions(ctx, "ghost")
	require.ErrorIs(t, err, workflow.ErrRunNotFound)
}

func TestExecutionBagsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	s := NewService()
	require.NoError(t, s.CreateRun(ctx, &workflow.Run{ID: "run-1"}))

	outputs := map[string]any{"output": "original"}
	require.NoError(t, s.CreateNodeExecutions(ctx, []*workflow.NodeExecution{
		{RunID: "run-1", NodeID: "a", Status: workflow.ExecutionCompleted, Outputs: outputs},
	}))

	// Mutating the caller's bag must not leak into the stored record.
	outputs["output"] = "mutated"

	listed, err := s.ListNodeExecutions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "original", listed[0].Outputs["output"])

	// Nor must mutating a listed record leak back into the store.
	listed[0].Outputs["output"] = "poked"
	again, err := s.ListNodeExecutions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Outputs["output"])
}
