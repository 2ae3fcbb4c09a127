//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/workflow"
)

// scriptedReader replays a fixed sequence of run statuses, holding the last
// one forever.
type scriptedReader struct {
	mu       sync.Mutex
	statuses []workflow.RunStatus
	idx      int
	execs    []*workflow.NodeExecution
	getErr   error
	listErr  error
}

func (r *scriptedReader) GetRun(_ context.Context, runID string) (*workflow.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	status := r.statuses[r.idx]
	if r.idx < len(r.statuses)-1 {
		r.idx++
	}
	return &workflow.Run{ID: runID, Status: status}, nil
}

func (r *scriptedReader) ListNodeExecutions(context.Context, string) ([]*workflow.NodeExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.execs, nil
}

func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, update)
		case <-timeout:
			t.Fatal("poll loop did not terminate")
		}
	}
}

func TestPollUntilTerminal(t *testing.T) {
	reader := &scriptedReader{
		statuses: []workflow.RunStatus{workflow.RunRunning, workflow.RunRunning, workflow.RunCompleted},
		execs: []*workflow.NodeExecution{
			{NodeID: "a", Status: workflow.ExecutionCompleted},
			{NodeID: "b", Status: workflow.ExecutionFailed},
		},
	}
	p := New(reader, WithInterval(5*time.Millisecond))

	updates := collect(t, p.Poll(context.Background(), "run-1"))
	require.Len(t, updates, 3)
	assert.Equal(t, workflow.RunRunning, updates[0].RunStatus)
	assert.Equal(t, workflow.RunCompleted, updates[2].RunStatus)
	assert.Equal(t, map[string]workflow.ExecutionStatus{
		"a": workflow.ExecutionCompleted,
		"b": workflow.ExecutionFailed,
	}, updates[2].Nodes)
}

func TestPollStopsImmediatelyOnTerminalRun(t *testing.T) {
	reader := &scriptedReader{statuses: []workflow.RunStatus{workflow.RunCancelled}}
	p := New(reader, WithInterval(5*time.Millisecond))

	updates := collect(t, p.Poll(context.Background(), "run-1"))
	require.Len(t, updates, 1)
	assert.Equal(t, workflow.RunCancelled, updates[0].RunStatus)
}

func TestPollStopsOnTransportError(t *testing.T) {
	reader := &scriptedReader{getErr: errors.New("connection refused")}
	p := New(reader, WithInterval(5*time.Millisecond))

	updates := collect(t, p.Poll(context.Background(), "run-1"))
	require.Len(t, updates, 1, "the loop must not keep polling after a failure")
	require.Error(t, updates[0].Err)
}

func TestPollStopsOnListError(t *testing.T) {
	reader := &scriptedReader{
		statuses: []workflow.RunStatus{workflow.RunRunning},
		listErr:  errors.New("connection reset"),
	}
	p := New(reader, WithInterval(5*time.Millisecond))

	updates := collect(t, p.Poll(context.Background(), "run-1"))
	require.Len(t, updates, 1)
	require.Error(t, updates[0].Err)
	assert.Equal(t, workflow.RunRunning, updates[0].RunStatus)
}

func TestPollStopsOnContextCancel(t *testing.T) {
	reader := &scriptedReader{statuses: []workflow.RunStatus{workflow.RunRunning}}
	p := New(reader, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	updates := p.Poll(ctx, "run-1")

	first, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, workflow.RunRunning, first.RunStatus)

	cancel()
	select {
	case _, ok := <-updates:
		assert.False(t, ok, "channel must close after cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop ignored cancellation")
	}
}
