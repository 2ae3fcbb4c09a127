//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package poller republishes run status at a fixed interval until the run
// reaches a terminal state. It shares nothing with the engine beyond the
// store's read surface.
package poller

import (
	"context"
	"time"

	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/workflow"
)

// DefaultInterval is the default poll period.
const DefaultInterval = time.Second

// RunReader is the read-only surface the poller needs. workflow.Store
// satisfies it.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*workflow.Run, error)
	ListNodeExecutions(ctx context.Context, runID string) ([]*workflow.NodeExecution, error)
}

// Update is one published snapshot of a run.
type Update struct {
	// RunStatus is the run's status at fetch time.
	RunStatus workflow.RunStatus
	// Nodes maps node id to its execution status.
	Nodes map[string]workflow.ExecutionStatus
	// Err is set on the final update when the poll loop stops because a
	// fetch failed. The channel closes right after: the caller must treat
	// the run as no longer observable rather than still running.
	Err error
}

// Poller polls a RunReader.
type Poller struct {
	reader   RunReader
	interval time.Duration
}

// Option configures the Poller.
type Option func(*Poller)

// WithInterval sets the poll period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates a Poller.
func New(reader RunReader, opts ...Option) *Poller {
	p := &Poller{reader: reader, interval: DefaultInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll publishes run snapshots on the returned channel until the run turns
// terminal, a fetch fails, or ctx is cancelled. The channel is always closed
// when the loop stops, so ranging over it terminates deterministically.
func (p *Poller) Poll(ctx context.Context, runID string) <-chan Update {
	updates := make(chan Update, 1)
	go func() {
		defer close(updates)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			update, terminal := p.fetch(ctx, runID)
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
			if terminal || update.Err != nil {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return updates
}

// fetch reads one snapshot. The second return reports whether the run is
// terminal.
func (p *Poller) fetch(ctx context.Context, runID string) (Update, bool) {
	run, err := p.reader.GetRun(ctx, runID)
	if err != nil {
		log.Warnf("poller: run %s: %v, stopping", runID, err)
		return Update{Err: err}, false
	}
	execs, err := p.reader.ListNodeExecutions(ctx, runID)
	if err != nil {
		log.Warnf("poller: run %s executions: %v, stopping", runID, err)
		return Update{RunStatus: run.Status, Err: err}, false
	}
	nodes := make(map[string]workflow.ExecutionStatus, len(execs))
	for _, exec := range execs {
		nodes[exec.NodeID] = exec.Status
	}
	return Update{RunStatus: run.Status, Nodes: nodes}, run.Status.Terminal()
}
