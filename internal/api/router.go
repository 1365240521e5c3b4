package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-crm/internal/appointment"
	"github.com/hackgods/clinic-crm/internal/lead"
	"github.com/hackgods/clinic-crm/internal/metrics"
	"github.com/hackgods/clinic-crm/internal/patient"
	"github.com/hackgods/clinic-crm/internal/profile"
	"github.com/hackgods/clinic-crm/pkg/logging"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Leads        *lead.Service
	Patients     *patient.Service
	Postgres     Pinger
	Redis        *redis.Client
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
	// Gatherer backs /metrics. Nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/appointments", func(r chi.Router) {
		svc := cfg.Appointments
		r.Get("/", listAppointmentsHandler(svc))
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/stats", appointmentStatsHandler(svc))
		r.Get("/available-slots", availableSlotsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Put("/{id}", updateAppointmentHandler(svc))
		r.Delete("/{id}", cancelAppointmentHandler(svc))
		r.Patch("/{id}/status", updateAppointmentStatusHandler(svc))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(svc))
	})

	r.Route("/leads", func(r chi.Router) {
		svc := cfg.Leads
		r.Get("/", listLeadsHandler(svc))
		r.Post("/", createLeadHandler(svc))
		r.Get("/stats", leadStatsHandler(svc))
		r.Get("/check-duplicate", checkDuplicateHandler(svc))
		r.Get("/{id}", getLeadHandler(svc))
		r.Put("/{id}", updateLeadHandler(svc))
		r.Delete("/{id}", deleteLeadHandler(svc))
		r.Post("/{id}/convert-to-patient", convertLeadHandler(svc))
		r.Post("/{id}/schedule", scheduleLeadHandler(svc))
	})

	r.Route("/patients", func(r chi.Router) {
		svc := cfg.Patients
		r.Get("/", listPatientsHandler(svc))
		r.Post("/", createPatientHandler(svc))
		r.Get("/stats", patientStatsHandler(svc))
		r.Get("/{id}", getPatientHandler(svc))
		r.Get("/{id}/profile", patientProfileHandler(profile.NewService(svc, cfg.Leads, cfg.Appointments)))
		r.Put("/{id}", updatePatientHandler(svc))
	})

	return r
}
