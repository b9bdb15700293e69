// Package api implements the HTTP surface from SPEC_FULL.md §4.10: status,
// config, SSE, and health endpoints, structured the way the teacher's
// control-plane API server wraps a ServeMux with writeJSON/writeError
// helpers and Go 1.22+ method-pattern routes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ifpj/netwatch/internal/config"
	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/types"
)

// StatusSource supplies the live set of target statuses. The Supervisor
// satisfies this via its Statuses method.
type StatusSource func() []types.TargetStatus

// ConfigStore is the subset of config persistence the API needs: read the
// live config and apply a validated replacement.
type ConfigStore interface {
	Current() types.Config
	Apply(types.Config) error
}

// Server is the HTTP API server.
type Server struct {
	statuses StatusSource
	cfg      ConfigStore
	bus      *eventbus.Bus
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server and registers its routes.
func NewServer(statuses StatusSource, cfg ConfigStore, bus *eventbus.Bus, logger *slog.Logger) *Server {
	s := &Server{
		statuses: statuses,
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler, logging every request at debug level.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("POST /api/config", s.handlePostConfig)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/healthz", s.handleHealthz)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.statuses())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Current())
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var newCfg types.Config
	if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
		s.writeConfigResult(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := newCfg.Validate(); err != nil {
		s.writeConfigResult(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cfg.Apply(newCfg); err != nil {
		s.logger.Error("apply config failed", "error", err)
		s.writeConfigResult(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) writeConfigResult(w http.ResponseWriter, status int, errMessage string) {
	s.writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errMessage,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthzPayload())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// fileConfigStore adapts the config package's file-backed Load/Save to the
// ConfigStore interface, so the API's reconciliation hook can be wired
// directly to the Supervisor.
type fileConfigStore struct {
	path    string
	applyFn func(types.Config) error
	getFn   func() types.Config
}

// NewFileConfigStore builds a ConfigStore that persists POSTed config to
// path atomically (via config.Save) and then hands the parsed config to
// applyFn for reconciliation.
func NewFileConfigStore(path string, current func() types.Config, applyFn func(types.Config) error) ConfigStore {
	return &fileConfigStore{path: path, applyFn: applyFn, getFn: current}
}

func (f *fileConfigStore) Current() types.Config { return f.getFn() }

func (f *fileConfigStore) Apply(cfg types.Config) error {
	if err := config.Save(f.path, cfg); err != nil {
		return err
	}
	return f.applyFn(cfg)
}
