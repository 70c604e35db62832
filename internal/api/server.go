package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hearthd/hearth-platform/internal/agent"
	"github.com/hearthd/hearth-platform/internal/engine"
	"github.com/hearthd/hearth-platform/internal/executor"
	"github.com/hearthd/hearth-platform/internal/memory"
	"github.com/hearthd/hearth-platform/internal/scheduler"
	"github.com/hearthd/hearth-platform/pkg/health"
)

// Server exposes the agent's status and manual control surface over HTTP
type Server struct {
	engine    *engine.Engine
	executor  *executor.Executor
	scheduler *scheduler.Scheduler
	store     *memory.Store
	checker   *health.Checker
	logger    *slog.Logger

	httpServer *http.Server
}

// NewServer creates the API server on the given port
func NewServer(port int, eng *engine.Engine, exec *executor.Executor, sched *scheduler.Scheduler, store *memory.Store, checker *health.Checker, logger *slog.Logger) *Server {
	s := &Server{
		engine:    eng,
		executor:  exec,
		scheduler: sched,
		store:     store,
		checker:   checker,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.checker.HandlerFunc())
	r.Get("/api/health/detailed", s.checker.DetailedHandlerFunc())
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/patterns", s.handlePatterns)
	r.Post("/api/action", s.handleAction)
	r.Post("/api/think", s.handleThink)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusResponse struct {
	Engine        engine.Status `json:"engine"`
	CycleInterval string        `json:"cycle_interval"`
	FailureRate   float64       `json:"failure_rate"`
	Priorities    []string      `json:"priorities"`
	PatternCount  int           `json:"pattern_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{
		Engine:        s.engine.Status(),
		CycleInterval: s.scheduler.Interval().String(),
		FailureRate:   s.scheduler.FailureRate(),
		Priorities:    s.scheduler.Priorities(),
		PatternCount:  len(s.store.Patterns()),
	})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": s.store.Patterns(),
	})
}

type actionRequest struct {
	Action  agent.ActionType `json:"action"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// handleAction executes a user-requested action directly, bypassing the
// confidence gate. The outcome still feeds learning.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if !req.Action.Valid() || req.Action == agent.ActionNone {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	decision := agent.Decision{
		ID:         uuid.New().String(),
		Action:     req.Action,
		Confidence: 1.0,
		Reasoning:  []string{"manual request via API"},
		Payload:    req.Payload,
		CreatedAt:  time.Now(),
	}

	outcome, err := s.executor.Execute(r.Context(), decision)
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"decision": decision,
			"outcome":  outcome,
			"error":    err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decision": decision,
		"outcome":  outcome,
	})
}

// handleThink triggers one decision cycle immediately. If a cycle is
// already running the engine answers with a skip.
func (s *Server) handleThink(w http.ResponseWriter, r *http.Request) {
	decision, err := s.engine.Think(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decision": decision,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode API response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
