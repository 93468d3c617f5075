package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /stats.
type statsResponse struct {
	Total   int            `json:"total"`
	Done    int            `json:"done"`
	Running int            `json:"running"`
	ByGraph map[string]int `json:"by_graph"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.runs.Stats()

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:   stats.Total,
		Done:    stats.Done,
		Running: stats.Running,
		ByGraph: stats.ByGraph,
	})
}
