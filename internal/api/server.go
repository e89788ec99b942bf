// Package api exposes the monitor's readings and statistics over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/marcuspuchalla/co2-monitor/internal/store"
	"github.com/marcuspuchalla/co2-monitor/internal/tracker"
)

// Server is the HTTP server for the monitor API.
type Server struct {
	store  *store.Store
	latest *tracker.Latest
	hub    *Hub
	router *mux.Router
	server *http.Server

	started time.Time
	version string
}

// NewServer creates a new HTTP server.
func NewServer(addr, version string, st *store.Store, latest *tracker.Latest, hub *Hub) *Server {
	srv := &Server{
		store:   st,
		latest:  latest,
		hub:     hub,
		router:  mux.NewRouter(),
		started: time.Now(),
		version: version,
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(srv.router))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/current", s.handleCurrent).Methods("GET")
	api.HandleFunc("/statistics", s.handleStatistics).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	api.HandleFunc("/patterns/hourly", s.handleHourlyPattern).Methods("GET")
	api.HandleFunc("/patterns/weekly", s.handleWeeklyPattern).Methods("GET")
	api.HandleFunc("/patterns/day-night", s.handleDayNight).Methods("GET")
	api.HandleFunc("/patterns/work-weekend", s.handleWorkWeekend).Methods("GET")

	api.HandleFunc("/stats/range", s.handleRangeStats).Methods("GET")
	api.HandleFunc("/stats/summary", s.handleSummary).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Realtime reading stream
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	// Liveness probe
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
}
