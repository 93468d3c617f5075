package api

import (
	"net/http"

	"github.com/seantiz/graphrun/internal/tool"
)

type listToolsResponse struct {
	Tools []tool.Info `json:"tools"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listToolsResponse{Tools: s.tools.List()})
}
