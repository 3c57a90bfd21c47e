package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service AppointmentService
	Health  *HealthHandler
	Log     *zap.Logger

	// RequestTimeout bounds each appointments request. Zero disables it.
	RequestTimeout time.Duration
	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit      int
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(log))
	r.Use(Recover(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader, IdempotencyKeyHeader, ActorHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	h := NewAppointmentHandler(cfg.Service, log)
	r.Route("/appointments", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Second))
		}
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/available-slots", h.AvailableSlots)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Patch("/{id}/reschedule", h.Reschedule)
		r.Post("/{id}/cancel", h.Cancel)
		r.Patch("/{id}/doctor", h.AssignDoctor)
	})

	return r
}
