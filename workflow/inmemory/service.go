//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory workflow store implementation.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flowforge/flowforge/workflow"
)

var (
	_ workflow.Store          = (*Service)(nil)
	_ workflow.WorkflowWriter = (*Service)(nil)
)

// Service is a mutex-guarded in-memory workflow store. It is the default
// store for tests and single-process deployments.
type Service struct {
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow
	runs      map[string]*workflow.Run
	// execs maps runID -> nodeID -> execution record.
	execs map[string]map[string]*workflow.NodeExecution
	// execOrder preserves insertion order per run so listings are stable.
	execOrder map[string][]string
}

// NewService creates an empty in-memory store.
func NewService() *Service {
	return &Service{
		workflows: make(map[string]*workflow.Workflow),
		runs:      make(map[string]*workflow.Run),
		execs:     make(map[string]map[string]*workflow.NodeExecution),
		execOrder: make(map[string][]string),
	}
}

// SaveWorkflow inserts or replaces a workflow definition.
func (s *Service) SaveWorkflow(_ context.Context, wf *workflow.Workflow) error {
	if wf == nil {
		return fmt.Errorf("workflow cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	cp := *wf
	s.workflows[wf.ID] = &cp
	return nil
}

// WorkflowGraph loads the node and edge records of one workflow.
func (s *Service) WorkflowGraph(_ context.Context, workflowID string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, workflow.ErrWorkflowNotFound)
	}
	cp := *wf
	return &cp, nil
}

// CreateRun inserts a new run record.
func (s *Service) CreateRun(_ context.Context, run *workflow.Run) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// CreateNodeExecutions inserts the PENDING execution record of every node.
func (s *Service) CreateNodeExecutions(_ context.Context, execs []*workflow.NodeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exec := range execs {
		if exec.ID == "" {
			exec.ID = uuid.NewString()
		}
		byNode, ok := s.execs[exec.RunID]
		if !ok {
			byNode = make(map[string]*workflow.NodeExecution)
			s.execs[exec.RunID] = byNode
		}
		if _, exists := byNode[exec.NodeID]; !exists {
			s.execOrder[exec.RunID] = append(s.execOrder[exec.RunID], exec.NodeID)
		}
		byNode[exec.NodeID] = cloneExecution(exec)
	}
	return nil
}

// UpdateNodeExecution overwrites the execution record of exec's (run, node).
func (s *Service) UpdateNodeExecution(_ context.Context, exec *workflow.NodeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byNode, ok := s.execs[exec.RunID]
	if !ok {
		return fmt.Errorf("run %s node %s: %w", exec.RunID, exec.NodeID, workflow.ErrExecutionNotFound)
	}
	prev, ok := byNode[exec.NodeID]
	if !ok {
		return fmt.Errorf("run %s node %s: %w", exec.RunID, exec.NodeID, workflow.ErrExecutionNotFound)
	}
	cp := cloneExecution(exec)
	cp.ID = prev.ID
	byNode[exec.NodeID] = cp
	return nil
}

// UpdateRun overwrites the run record.
func (s *Service) UpdateRun(_ context.Context, run *workflow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, workflow.ErrRunNotFound)
	}
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

// GetRun fetches one run record.
func (s *Service) GetRun(_ context.Context, runID string) (*workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, workflow.ErrRunNotFound)
	}
	cp := *run
	return &cp, nil
}

// ListNodeExecutions fetches all execution records of one run in insertion
// order.
func (s *Service) ListNodeExecutions(_ context.Context, runID string) ([]*workflow.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byNode, ok := s.execs[runID]
	if !ok {
		if _, exists := s.runs[runID]; exists {
			return nil, nil
		}
		return nil, fmt.Errorf("run %s: %w", runID, workflow.ErrRunNotFound)
	}
	out := make([]*workflow.NodeExecution, 0, len(byNode))
	for _, nodeID := range s.execOrder[runID] {
		out = append(out, cloneExecution(byNode[nodeID]))
	}
	return out, nil
}

// cloneExecution deep-copies an execution record so callers and the store
// never alias the same input/output bags.
func cloneExecution(exec *workflow.NodeExecution) *workflow.NodeExecution {
	cp := *exec
	cp.Inputs = cloneBag(exec.Inputs)
	cp.Outputs = cloneBag(exec.Outputs)
	return &cp
}

func cloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return nil
	}
	data, err := json.Marshal(bag)
	if err != nil {
		// Bags hold JSON-shaped values; fall back to a shallow copy for
		// anything that does not round-trip.
		cp := make(map[string]any, len(bag))
		for k, v := range bag {
			cp[k] = v
		}
		return cp
	}
	var cp map[string]any
	if err := json.Unmarshal(data, &cp); err != nil {
		return bag
	}
	return cp
}
