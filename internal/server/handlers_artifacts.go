package server

import (
	"encoding/base64"
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleArtifactsList(w http.ResponseWriter, r *http.Request) {
	out, err := s.dict.Artifacts.Store.List(r.Context())
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type saveArtifactRequest struct {
	Name          string         `json:"name"`
	DataBase64    string         `json:"data_base64"`
	Description   string         `json:"description"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) handleArtifactsSave(w http.ResponseWriter, r *http.Request) {
	var req saveArtifactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DataBase64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "InvalidRequest", "data_base64 is not valid base64")
		return
	}
	if err := s.dict.Artifacts.Store.Save(r.Context(), req.Name, data, req.Description, req.Metadata); err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleArtifactsGet(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rec, err := s.dict.Artifacts.Store.Load(r.Context(), name)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         rec.Name,
		"description":  rec.Description,
		"metadata":     rec.Metadata,
		"created_at":   rec.CreatedAt,
		"data_base64":  base64.StdEncoding.EncodeToString(rec.Data),
	})
}

func (s *Server) handleArtifactsDelete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ok, err := s.dict.Artifacts.Store.Delete(r.Context(), name)
	if err != nil {
		writeErrFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
}
