package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/adekerz/FreshTrack-sub004/internal/scheduler"
	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// JobRunner triggers the engine's jobs on demand.
type JobRunner interface {
	RunEvaluationNow(ctx context.Context) (int, error)
	RunSweepNow(ctx context.Context) (int, error)
	RunDailyReportNow(ctx context.Context) (types.ReportResult, error)
	Reschedule(ctx context.Context) error
	Status() scheduler.Status
}

// QueueInspector reads the delivery queue's per-status counts.
type QueueInspector interface {
	CountByStatus(ctx context.Context) (map[types.DeliveryStatus]int, error)
}

// Server hosts the admin trigger surface.
type Server struct {
	jobs   JobRunner
	queue  QueueInspector
	logger types.Logger
	router *chi.Mux
}

// NewServer creates the admin server and mounts its routes. The webhook
// handler is optional; nil leaves the webhook path unmounted.
func NewServer(jobs JobRunner, queue QueueInspector, webhook http.Handler, logger types.Logger) *Server {
	s := &Server{
		jobs:   jobs,
		queue:  queue,
		logger: logger,
		router: chi.NewRouter(),
	}

	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/jobs/evaluate", s.handleEvaluate)
		r.Post("/jobs/sweep", s.handleSweep)
		r.Post("/jobs/daily-report", s.handleDailyReport)
		r.Get("/jobs/status", s.handleQueueStatus)
		r.Get("/schedule", s.handleSchedule)
		r.Post("/schedule/reschedule", s.handleReschedule)
	})

	if webhook != nil {
		s.router.Post("/telegram/webhook", webhook.ServeHTTP)
	}

	return s
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	created, err := s.jobs.RunEvaluationNow(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int{"notifications_created": created}})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	delivered, err := s.jobs.RunSweepNow(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]int{"delivered": delivered}})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobs.RunDailyReportNow(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.queue.CountByStatus(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: counts})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: s.jobs.Status()})
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Reschedule(r.Context()); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: s.jobs.Status()})
}

// requestID assigns every request an id carried through the context and
// echoed in the X-Request-ID response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", types.GetRequestID(r.Context()),
		)
	})
}
