//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrWorkflowNotFound is returned when the workflow id is unknown.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrRunNotFound is returned when the run id is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrExecutionNotFound is returned when no execution record exists for
	// the (run, node) pair being updated.
	ErrExecutionNotFound = errors.New("node execution not found")
)

// Store is the persistence contract the engine runs against. Implementations
// must be safe for concurrent use: the engine writes execution records while
// pollers read them.
type Store interface {
	// WorkflowGraph loads the node and edge records of one workflow.
	WorkflowGraph(ctx context.Context, workflowID string) (*Workflow, error)
	// CreateRun inserts a new run record.
	CreateRun(ctx context.Context, run *Run) error
	// CreateNodeExecutions inserts the PENDING execution record of every
	// node in the run.
	CreateNodeExecutions(ctx context.Context, execs []*NodeExecution) error
	// UpdateNodeExecution overwrites the execution record for the
	// (run, node) pair carried by exec.
	UpdateNodeExecution(ctx context.Context, exec *NodeExecution) error
	// UpdateRun overwrites the run record.
	UpdateRun(ctx context.Context, run *Run) error
	// GetRun fetches one run record.
	GetRun(ctx context.Context, runID string) (*Run, error)
	// ListNodeExecutions fetches all execution records of one run.
	ListNodeExecutions(ctx context.Context, runID string) ([]*NodeExecution, error)
}

// WorkflowWriter is implemented by stores that can also persist workflow
// definitions. The engine itself never writes workflows; the editor does.
type WorkflowWriter interface {
	SaveWorkflow(ctx context.Context, wf *Workflow) error
}
