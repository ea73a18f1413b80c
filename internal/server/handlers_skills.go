package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

func (s *Server) handleSkillsList(w http.ResponseWriter, r *http.Request) {
	out, err := s.dict.Skills.Library.List(r.Context())
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSkillsSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 5
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	out, err := s.dict.Skills.Library.Search(r.Context(), q, limit)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSkillsGet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rec, err := s.dict.Skills.Library.Get(r.Context(), name)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type createSkillRequest struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Overwrite   bool   `json:"overwrite"`
}

func (s *Server) handleSkillsCreate(w http.ResponseWriter, r *http.Request) {
	var req createSkillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.dict.Skills.Library.Create(r.Context(), req.Name, req.Source, req.Description, req.Overwrite); err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSkillsDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.dict.Skills.Library.Delete(r.Context(), name)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
}
