package api

import (
	"net/http"

	"github.com/Ouadii-Zine/financify/internal/config"
)

// handleGetParameters returns the default calculation parameters. Books may
// carry their own, which take precedence.
func (s *Server) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	resp := ParametersResponse{Parameters: s.engine.Parameters()}
	if s.cfg != nil {
		resp.Workers = s.cfg.Engine.Workers
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleGetKeys returns the status of the configured credentials. Values are
// masked.
func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: []config.KeyStatus{}})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: config.CheckAPIKeys(s.cfg)})
}
