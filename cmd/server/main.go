// Command server exposes the renewal comparison engine over HTTP: one
// compare endpoint, reviewed-flag toggles, and custom check-rule
// management. With DATABASE_URL set, review flags and custom rules persist
// in PostgreSQL; without it everything runs in memory.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/copperkey/renewals/compare"
	"github.com/copperkey/renewals/internal/logger"
	"github.com/copperkey/renewals/review"
)

type Server struct {
	db      *sql.DB
	engine  *compare.Engine
	custom  *compare.CustomEngine
	reviews review.Store
	router  *chi.Mux
}

// NewServer wires the engine against PostgreSQL when databaseURL is set,
// in-memory stores otherwise.
func NewServer(databaseURL string) (*Server, error) {
	if databaseURL == "" {
		return newServer(nil, compare.NewInMemoryCustomRuleStore(), review.NewInMemoryStore())
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewServerWithDB(db)
}

// NewServerWithDB wires the engine against an existing database handle.
func NewServerWithDB(db *sql.DB) (*Server, error) {
	return newServer(db, compare.NewPostgresCustomRuleStore(db), review.NewPostgresStore(db))
}

func newServer(db *sql.DB, ruleStore compare.CustomRuleStore, reviews review.Store) (*Server, error) {
	custom, err := compare.NewCustomEngine(ruleStore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize custom rules: %w", err)
	}

	s := &Server{
		db:      db,
		engine:  compare.NewEngine(compare.DefaultConfig()).WithCustomRules(custom),
		custom:  custom,
		reviews: reviews,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)

	r.Post("/api/v1/compare", s.handleCompare)

	r.Route("/api/v1/renewals/{renewalId}", func(r chi.Router) {
		r.Put("/review", s.handleSetReviewed)
		r.Get("/review", s.handleListReviews)
	})

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Post("/", s.handleCreateRule)
		r.Get("/", s.handleListRules)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	report, err := s.engine.Compare(req.Baseline, req.Renewal)
	if errors.Is(err, compare.ErrNothingToCompare) {
		respondError(w, http.StatusUnprocessableEntity, "nothing to compare", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "comparison failed", err)
		return
	}

	renewalID := req.RenewalID
	if renewalID == "" {
		renewalID = uuid.New().String()
	} else {
		// Join persisted acknowledgements onto the fresh results.
		flags, err := s.reviews.List(renewalID)
		if err != nil {
			logger.Warn("failed to load review flags", "renewalId", renewalID, "error", err)
		} else {
			review.Apply(report.CheckResults, flags)
		}
	}

	respondJSON(w, http.StatusOK, CompareResponse{RenewalID: renewalID, Report: report})
}

func (s *Server) handleSetReviewed(w http.ResponseWriter, r *http.Request) {
	renewalID := chi.URLParam(r, "renewalId")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RuleID == "" || req.Field == "" {
		respondError(w, http.StatusBadRequest, "ruleId and field are required", nil)
		return
	}

	flag := review.Flag{
		RenewalID:  renewalID,
		RuleID:     req.RuleID,
		Field:      req.Field,
		Reviewed:   req.Reviewed,
		ReviewedBy: req.Actor,
		ReviewedAt: time.Now().UTC(),
	}
	if err := s.reviews.SetReviewed(flag); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save review flag", err)
		return
	}

	respondJSON(w, http.StatusOK, flag)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	renewalID := chi.URLParam(r, "renewalId")

	flags, err := s.reviews.List(renewalID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list review flags", err)
		return
	}
	if flags == nil {
		flags = []review.Flag{}
	}

	respondJSON(w, http.StatusOK, ReviewListResponse{Reviews: flags})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.Expression == "" {
		respondError(w, http.StatusBadRequest, "name and expression are required", nil)
		return
	}

	rule := &compare.CustomRule{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Expression:  req.Expression,
		Category:    req.Category,
		Severity:    req.Severity,
		Blocker:     req.Blocker,
		Message:     req.Message,
		AgentAction: req.AgentAction,
		Active:      req.Active,
	}

	// AddRule validates the expression compiles before storing.
	if err := s.custom.AddRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, ruleResponse(rule))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.custom.ListRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}

	out := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponse(rule))
	}

	respondJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	rule, err := s.custom.GetRule(ruleID)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	respondJSON(w, http.StatusOK, ruleResponse(rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := &compare.CustomRule{
		ID:          ruleID,
		Name:        req.Name,
		Expression:  req.Expression,
		Category:    req.Category,
		Severity:    req.Severity,
		Blocker:     req.Blocker,
		Message:     req.Message,
		AgentAction: req.AgentAction,
		Active:      req.Active,
	}

	if err := s.custom.UpdateRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, ruleResponse(rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	if err := s.custom.DeleteRule(ruleID); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	server, err := NewServer(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
