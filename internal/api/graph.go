package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/graphrun/internal/model"
	"github.com/seantiz/graphrun/internal/store"
)

type createGraphResponse struct {
	GraphID string `json:"graph_id"`
}

type graphResponse struct {
	GraphID string       `json:"graph_id"`
	Graph   *model.Graph `json:"graph"`
}

type listGraphsResponse struct {
	Graphs []store.GraphSummary `json:"graphs"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	var g model.Graph
	if err := decodeJSON(w, r, &g); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	g.Normalize()
	if err := g.Validate(); err != nil {
		resp := errorResponse{Error: "invalid graph"}
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			resp.Problems = ve.Problems
		}
		s.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	id, err := s.graphs.CreateGraph(r.Context(), &g)
	if err != nil {
		s.logger.Error("create graph", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create graph")
		return
	}

	s.logger.Info("graph created", "graph_id", id, "nodes", len(g.Nodes))
	s.writeJSON(w, http.StatusOK, createGraphResponse{GraphID: id})
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "graph_id")

	g, err := s.graphs.GetGraph(r.Context(), id)
	if errors.Is(err, store.ErrGraphNotFound) {
		s.writeError(w, http.StatusNotFound, "graph not found")
		return
	}
	if err != nil {
		s.logger.Error("get graph", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get graph")
		return
	}

	s.writeJSON(w, http.StatusOK, graphResponse{GraphID: id, Graph: g})
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	graphs, total, err := s.graphs.ListGraphs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list graphs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list graphs")
		return
	}

	if graphs == nil {
		graphs = []store.GraphSummary{}
	}

	s.writeJSON(w, http.StatusOK, listGraphsResponse{
		Graphs: graphs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
