// Package web exposes the analysis core over HTTP: synchronous
// conversations, queued one-shot analyses, health and metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain/ports/repository"
	"analytics-ai-core/internal/infra/logging"
	"analytics-ai-core/internal/usecase"
)

type Server struct {
	sessions usecase.SessionUseCase
	jobs     repository.AnalysisJobRepository
	results  repository.DocumentStore
	log      *zerolog.Logger
	srv      *http.Server
}

func NewServer(
	sessions usecase.SessionUseCase,
	jobs repository.AnalysisJobRepository,
	results repository.DocumentStore,
	port int,
	log *zerolog.Logger,
) *Server {
	s := &Server{
		sessions: sessions,
		jobs:     jobs,
		results:  results,
		log:      log,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.trace)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses", s.createAnalysis)
		r.Get("/analyses/{id}", s.getAnalysis)

		r.Post("/conversations", s.startConversation)
		r.Post("/conversations/{id}/messages", s.postMessage)
		r.Delete("/conversations/{id}", s.endConversation)
	})
	return r
}

// trace tags every request with a trace id carried through the context,
// so downstream log lines correlate without shared globals.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
