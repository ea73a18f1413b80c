package server

import "net/http"

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dict.Tools.Registry.List())
}

func (s *Server) handleToolsSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, s.dict.Tools.Registry.Search(q))
}
