package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleDepsList(w http.ResponseWriter, r *http.Request) {
	out, err := s.dict.Deps.Controller.List(r.Context())
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type addDepRequest struct {
	Spec string `json:"spec"`
}

func (s *Server) handleDepsAdd(w http.ResponseWriter, r *http.Request) {
	var req addDepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := s.dict.Deps.Controller.Add(r.Context(), req.Spec)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleDepsRemove(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.dict.Deps.Controller.Remove(r.Context(), name)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": ok})
}

func (s *Server) handleDepsSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.dict.Deps.Controller.Sync(r.Context())
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
