package api

import "net/http"

func (s *Server) handleListProcessors(w http.ResponseWriter, _ *http.Request) {
	processors := s.registry.List()
	s.writeJSON(w, http.StatusOK, processors)
}
