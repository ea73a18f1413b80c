// Package server implements the container session server's HTTP
// surface (spec.md §4.I): execute/reset/health plus CRUD over tools,
// skills, artifacts, and deps, all gated by bearer-token auth.
package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/namespace"
)

// ReadinessState is the value returned by GET /health.
type ReadinessState string

const (
	StateStarting  ReadinessState = "starting"
	StateHealthy   ReadinessState = "healthy"
	StateUnhealthy ReadinessState = "unhealthy"
)

// Server is the container session server. Execute/reset are serialized
// per session (execMu); health/list/search endpoints may run
// concurrently with an in-flight execute (spec.md §4.I).
type Server struct {
	dict   *namespace.Dict
	exec   executor.Executor
	token  string
	noAuth bool

	execMu sync.Mutex
	state  atomic.Value // ReadinessState

	router *mux.Router
}

// Config is the server's fail-closed auth configuration: if Token is
// empty and DisableAuth is false, New refuses to construct a server
// (spec.md §4.I: "Fatal: auth not configured").
type Config struct {
	Token       string
	DisableAuth bool
}

func New(dict *namespace.Dict, exec executor.Executor, cfg Config) (*Server, error) {
	if cfg.Token == "" && !cfg.DisableAuth {
		return nil, errAuthNotConfigured
	}
	s := &Server{dict: dict, exec: exec, token: cfg.Token, noAuth: cfg.DisableAuth}
	s.state.Store(StateStarting)
	s.router = mux.NewRouter()
	s.routes()
	return s, nil
}

func (s *Server) SetReady()     { s.state.Store(StateHealthy) }
func (s *Server) SetUnhealthy() { s.state.Store(StateUnhealthy) }

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router

	protected := r.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	protected.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)

	protected.HandleFunc("/tools", s.handleToolsList).Methods(http.MethodGet)
	protected.HandleFunc("/tools/search", s.handleToolsSearch).Methods(http.MethodGet)

	protected.HandleFunc("/skills", s.handleSkillsList).Methods(http.MethodGet)
	protected.HandleFunc("/skills", s.handleSkillsCreate).Methods(http.MethodPost)
	protected.HandleFunc("/skills/search", s.handleSkillsSearch).Methods(http.MethodGet)
	protected.HandleFunc("/skills/{name}", s.handleSkillsGet).Methods(http.MethodGet)
	protected.HandleFunc("/skills/{name}", s.handleSkillsDelete).Methods(http.MethodDelete)

	protected.HandleFunc("/artifacts", s.handleArtifactsList).Methods(http.MethodGet)
	protected.HandleFunc("/artifacts", s.handleArtifactsSave).Methods(http.MethodPost)
	protected.HandleFunc("/artifacts/{name}", s.handleArtifactsGet).Methods(http.MethodGet)
	protected.HandleFunc("/artifacts/{name}", s.handleArtifactsDelete).Methods(http.MethodDelete)

	protected.HandleFunc("/deps", s.handleDepsList).Methods(http.MethodGet)
	protected.HandleFunc("/deps", s.handleDepsAdd).Methods(http.MethodPost)
	protected.HandleFunc("/deps/{name}", s.handleDepsRemove).Methods(http.MethodDelete)
	protected.HandleFunc("/deps/sync", s.handleDepsSync).Methods(http.MethodPost)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.noAuth {
			next.ServeHTTP(w, r)
			return
		}
		authz := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(authz) <= len(prefix) || authz[:len(prefix)] != prefix || authz[len(prefix):] != s.token {
			writeError(w, http.StatusUnauthorized, "AuthInvalid", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(s.state.Load().(ReadinessState))})
}

type executeRequest struct {
	Code       string  `json:"code"`
	TimeoutSec float64 `json:"timeout,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execMu.Lock()
	defer s.execMu.Unlock()

	var timeout time.Duration
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec * float64(time.Second))
	}
	result, err := s.exec.Execute(r.Context(), req.Code, timeout)
	if err != nil {
		logger.Get().Sugar().Errorw("execute infrastructure fault", "err", err)
		writeError(w, http.StatusInternalServerError, "ExecutorUnavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.execMu.Lock()
	defer s.execMu.Unlock()
	if err := s.exec.Reset(r.Context()); err != nil {
		writeError(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

var errAuthNotConfigured = &fatalAuthError{}

type fatalAuthError struct{}

func (*fatalAuthError) Error() string {
	return "auth not configured: set a bearer token or explicitly disable auth"
}
