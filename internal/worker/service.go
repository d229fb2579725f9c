// Package worker provides the local HTTP service the reverie frontend talks
// to: analysis submission, journal state queries, and a live event stream.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/halcyonlabs/reverie/internal/analyzer"
	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/store"
	"github.com/halcyonlabs/reverie/internal/worker/sse"
)

// Service owns the HTTP surface of the worker.
type Service struct {
	version     string
	config      *config.Config
	store       *store.Store
	analyzer    *analyzer.Analyzer
	broadcaster *sse.Broadcaster
	router      *chi.Mux
	httpServer  *http.Server
	startTime   time.Time
}

// NewService wires the service together. Analyzer transitions are fanned out
// to event-stream subscribers as they happen.
func NewService(version string, cfg *config.Config, st *store.Store, an *analyzer.Analyzer) *Service {
	svc := &Service{
		version:     version,
		config:      cfg,
		store:       st,
		analyzer:    an,
		broadcaster: sse.NewBroadcaster(),
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}

	an.SetOnStatusChange(func(status analyzer.Status) {
		svc.broadcaster.Broadcast(sse.Event{Type: "status", Data: status})
	})

	svc.setupRoutes()
	return svc
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/state", s.handleState)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Get("/api/profile", s.handleProfile)
	s.router.Post("/api/analyze", s.handleAnalyze)
	s.router.Delete("/api/journal", s.handleClearJournal)
	s.router.Get("/api/events", s.handleEvents)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Service) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", port).Str("version", s.version).Msg("Worker listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Service) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if closeErr := s.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
