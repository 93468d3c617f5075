package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
)

// runRequest is the JSON body for POST /graph/run and /graph/run/sync.
type runRequest struct {
	GraphID      string         `json:"graph_id"`
	InitialState map[string]any `json:"initial_state"`
}

type startRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// taskInfo describes the background goroutine of a run. It is empty for runs
// executed synchronously.
type taskInfo struct {
	Done       *bool      `json:"done,omitempty"`
	Cancelled  bool       `json:"cancelled,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type stateResponse struct {
	Run  model.RunSnapshot `json:"run"`
	Task taskInfo          `json:"task"`
}

type listRunsResponse struct {
	Runs   []model.RunSnapshot `json:"runs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func (s *Server) decodeRunRequest(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.GraphID == "" {
		s.writeError(w, http.StatusBadRequest, "graph_id is required")
		return req, false
	}
	if req.InitialState == nil {
		req.InitialState = map[string]any{}
	}
	return req, true
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	runID, err := s.scheduler.Start(r.Context(), req.GraphID, req.InitialState)
	if errors.Is(err, store.ErrGraphNotFound) {
		s.writeError(w, http.StatusNotFound, "graph not found")
		return
	}
	if err != nil {
		s.logger.Error("start run", "graph_id", req.GraphID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	s.writeJSON(w, http.StatusOK, startRunResponse{RunID: runID, Status: "started"})
}

// handleRunSync executes the graph on the request goroutine and returns the
// final run. The run outlives a disconnecting client.
func (s *Server) handleRunSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	// The write timeout is shorter than a long graph.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for sync run", "error", err)
	}

	run, err := s.engine.Execute(context.WithoutCancel(r.Context()), req.GraphID, req.InitialState, "")
	if errors.Is(err, store.ErrGraphNotFound) {
		s.writeError(w, http.StatusNotFound, "graph not found")
		return
	}
	if err != nil {
		s.logger.Error("run graph", "graph_id", req.GraphID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to run graph")
		return
	}

	s.writeJSON(w, http.StatusOK, run.Snapshot())
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run_id")

	run, err := s.runs.Get(id)
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run_id not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	var info taskInfo
	if task, ok := s.runs.Task(id); ok {
		done := task.Done
		started := task.StartedAt
		info = taskInfo{
			Done:       &done,
			Cancelled:  task.Cancelled,
			StartedAt:  &started,
			FinishedAt: task.FinishedAt,
		}
	}

	s.writeJSON(w, http.StatusOK, stateResponse{Run: run.Snapshot(), Task: info})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	runs, total := s.runs.List(limit, offset)
	if runs == nil {
		runs = []model.RunSnapshot{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
