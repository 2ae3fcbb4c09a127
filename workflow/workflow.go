//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package workflow defines the persisted workflow records and the storage
// contract the execution engine runs against.
package workflow

import (
	"time"
)

// NodeKind identifies the processing behavior of a node.
type NodeKind string

const (
	// KindText emits a static text value from the node config.
	KindText NodeKind = "text"
	// KindImage emits an image reference (URL or base64) from the node config.
	KindImage NodeKind = "image"
	// KindVideo emits a video URL from the node config.
	KindVideo NodeKind = "video"
	// KindCrop emits a cropped image, prepared ahead of time or taken from
	// upstream image inputs.
	KindCrop NodeKind = "crop"
	// KindExtract emits a video frame that must be extracted before the run.
	KindExtract NodeKind = "extract"
	// KindLLM calls a generation model with the resolved prompt and images.
	KindLLM NodeKind = "llm"
)

// Position is the node's placement on the canvas. It is carried for the
// editor and ignored by the engine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one persisted node of a workflow graph.
type Node struct {
	// ID is the unique identifier of the node within its workflow.
	ID string `json:"id"`
	// Kind selects the handler that executes this node.
	Kind NodeKind `json:"type"`
	// Config holds the node's editor-supplied settings.
	Config map[string]any `json:"config"`
	// Position is UI-only.
	Position Position `json:"position"`
}

// Edge connects a source node's output handle to a target node's input handle.
type Edge struct {
	// ID is the unique identifier of the edge.
	ID string `json:"id"`
	// SourceID is the producing node.
	SourceID string `json:"sourceId"`
	// TargetID is the consuming node.
	TargetID string `json:"targetId"`
	// SourceHandle names the output connection point. Optional.
	SourceHandle string `json:"sourceHandle,omitempty"`
	// TargetHandle names the input connection point. Optional; an edge with
	// no target handle merges the producer's whole output bag.
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Workflow is one persisted graph.
type Workflow struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	// RunPending means the run exists but has not started executing.
	RunPending RunStatus = "PENDING"
	// RunRunning means the run is executing nodes.
	RunRunning RunStatus = "RUNNING"
	// RunCompleted means every node in the execution order was attempted.
	// Individual nodes may still have failed; callers needing true success
	// must inspect per-node statuses.
	RunCompleted RunStatus = "COMPLETED"
	// RunFailed means the run stopped before attempting every node.
	RunFailed RunStatus = "FAILED"
	// RunCancelled is set when a caller cancels the run from outside the
	// engine. The engine never produces it on its own.
	RunCancelled RunStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// ExecutionStatus is the lifecycle state of one node within a run.
type ExecutionStatus string

const (
	// ExecutionPending means the node has not been reached yet.
	ExecutionPending ExecutionStatus = "PENDING"
	// ExecutionRunning means the node's handler is executing.
	ExecutionRunning ExecutionStatus = "RUNNING"
	// ExecutionCompleted means the handler returned without error.
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	// ExecutionFailed means the handler returned an error, recorded on the
	// execution record.
	ExecutionFailed ExecutionStatus = "FAILED"
	// ExecutionSkipped is reserved. The engine never assigns it; downstream
	// nodes of a failed producer simply resolve without that producer's data.
	ExecutionSkipped ExecutionStatus = "SKIPPED"
)

// Run is one execution attempt of a workflow.
type Run struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflowId"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NodeExecution is the execution record of one node within one run.
// Exactly one exists per (run, node) pair, created at PENDING when the run
// is created, and it transitions PENDING→RUNNING→{COMPLETED|FAILED} at most
// once.
type NodeExecution struct {
	ID          string          `json:"id"`
	RunID       string          `json:"runId"`
	NodeID      string          `json:"nodeId"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	// Duration is the wall-clock handler time.
	Duration time.Duration `json:"duration,omitempty"`
	// Inputs is a snapshot of the resolved input bag.
	Inputs map[string]any `json:"inputs,omitempty"`
	// Outputs is a snapshot of the produced output bag.
	Outputs map[string]any `json:"outputs,omitempty"`
	// Error holds the handler error text for FAILED executions.
	Error string `json:"error,omitempty"`
}
