package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service   *appointment.Service
	Directory appointment.UserDirectory
	Storage   Pinger
	Redis     Pinger // nil when the process runs without Redis
	// RedisRequired fails readiness when Redis is down, as when it holds the locks.
	RedisRequired bool
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Storage, cfg.Redis, cfg.RedisRequired, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware(cfg.Directory))

		// Availability endpoints
		r.Get("/doctors/{doctorID}/availability", getAvailabilityHandler(cfg.Service))
		r.Put("/doctors/{doctorID}/availability", putAvailabilityHandler(cfg.Service))
		r.Get("/doctors/{doctorID}/free-slots", freeSlotsHandler(cfg.Service))

		// Appointment endpoints
		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}/events", appointmentEventsHandler(cfg.Service))
		r.Post("/appointments/{id}/transition", transitionAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
	})

	return r
}
