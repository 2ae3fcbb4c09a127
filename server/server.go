//
// Copyright (C) 2025 FlowForge Authors. All rights reserved.
//
// flowforge is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the run API over HTTP: starting a run, polling its
// status, and cancelling it.
package server

import (
	"errors"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/flowforge/flowforge/engine"
	"github.com/flowforge/flowforge/log"
	"github.com/flowforge/flowforge/workflow"
)

// Server serves the run API.
type Server struct {
	engine *engine.Engine
	store  workflow.Store
	router *mux.Router

	mu      sync.Mutex
	handles map[string]*engine.Handle
}

// Option configures the Server.
type Option func(*Server)

// New creates a Server around an engine and the store backing its read
// surface.
func New(eng *engine.Engine, store workflow.Store, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		store:   store,
		router:  mux.NewRouter(),
		handles: make(map[string]*engine.Handle),
	}
	for _, opt := range opts {
		opt(s)
	}

	// CORS so the canvas editor can call the API from the browser.
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/api/v1/runs", s.handleStartRun).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/runs/{runID}", s.handleRunStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/runs/{runID}/cancel", s.handleCancelRun).Methods(http.MethodPost)
}

type startRunRequest struct {
	WorkflowID string         `json:"workflowId"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

type startRunResponse struct {
	RunID string `json:"runId"`
}

type nodeExecutionStatus struct {
	NodeID string `json:"nodeId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type runStatusResponse struct {
	RunID          string                `json:"runId"`
	WorkflowID     string                `json:"workflowId"`
	Status         string                `json:"status"`
	NodeExecutions []nodeExecutionStatus `json:"nodeExecutions"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflowId is required")
		return
	}

	handle, err := s.engine.StartRun(r.Context(), req.WorkflowID, req.Inputs)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		log.Errorf("server: start run for workflow %s: %v", req.WorkflowID, err)
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	s.mu.Lock()
	s.handles[handle.RunID()] = handle
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, startRunResponse{RunID: handle.RunID()})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		log.Errorf("server: get run %s: %v", runID, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	execs, err := s.store.ListNodeExecutions(r.Context(), runID)
	if err != nil {
		log.Errorf("server: list node executions for run %s: %v", runID, err)
		writeError(w, http.StatusInternalServerError, "failed to load node executions")
		return
	}

	resp := runStatusResponse{
		RunID:          run.ID,
		WorkflowID:     run.WorkflowID,
		Status:         string(run.Status),
		NodeExecutions: make([]nodeExecutionStatus, 0, len(execs)),
	}
	for _, exec := range execs {
		resp.NodeExecutions = append(resp.NodeExecutions, nodeExecutionStatus{
			NodeID: exec.NodeID,
			Status: string(exec.Status),
			Error:  exec.Error,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	s.mu.Lock()
	handle, ok := s.handles[runID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "run not found or not owned by this server")
		return
	}
	handle.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
