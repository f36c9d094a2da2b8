package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentalsys/clinic-scheduling/internal/clinic"
)

type RouterConfig struct {
	Scheduler *clinic.Scheduler
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Location  *time.Location
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability (read path, advisory)
	r.Get("/availability", availabilityHandler(cfg.Scheduler))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Scheduler, loc))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/status", setStatusHandler(cfg.Scheduler))

	// Patients and practitioners
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Scheduler))
	r.Get("/practitioners", listPractitionersHandler(cfg.Scheduler))
	r.Get("/practitioners/{id}/agenda", practitionerAgendaHandler(cfg.Scheduler))
	r.Delete("/practitioners/{id}", deletePractitionerHandler(cfg.Scheduler))
	r.Get("/services", listServicesHandler(cfg.Scheduler))
	r.Delete("/services/{id}", deleteServiceHandler(cfg.Scheduler))

	// Clinic calendar configuration (admin)
	r.Get("/config", getConfigHandler(cfg.Scheduler))
	r.Put("/config", saveConfigHandler(cfg.Scheduler))

	return r
}
