package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Directory    *appointment.Directory
	Auth         *auth.Service
	Limiter      *redisclient.RateLimiter // nil disables rate limiting
	PgPool       *pgxpool.Pool            // nil with the in-memory store
	Redis        *redis.Client            // nil when Redis is disabled
	CORSOrigins  []string
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	authenticate := Authenticate(cfg.Auth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", registerHandler(cfg.Auth))
		r.With(RateLimit(cfg.Limiter, "login")).Post("/login", loginHandler(cfg.Auth))
		r.With(authenticate).Get("/me", meHandler(cfg.Auth))
	})

	r.Route("/api/facilities", func(r chi.Router) {
		r.Get("/", listFacilitiesHandler(cfg.Directory))
		r.Group(func(r chi.Router) {
			r.Use(authenticate, RequireRoles(appointment.RoleFacilityAdmin))
			r.Post("/", createFacilityHandler(cfg.Directory))
			r.Post("/invites", inviteAdminHandler(cfg.Auth))
		})
	})

	r.Route("/api/doctors", func(r chi.Router) {
		r.Get("/", listDoctorsHandler(cfg.Directory))
		r.Get("/facility/{facilityId}", facilityDoctorsHandler(cfg.Directory))
		r.Group(func(r chi.Router) {
			r.Use(authenticate, RequireRoles(appointment.RoleFacilityAdmin))
			r.Post("/", createDoctorHandler(cfg.Directory))
			r.Get("/my-facility", myFacilityDoctorsHandler(cfg.Directory))
		})
	})

	r.Route("/api/appointments", func(r chi.Router) {
		r.Get("/ping", pingHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(appointment.RolePatient))
				r.With(RateLimit(cfg.Limiter, "booking")).Post("/", createAppointmentHandler(cfg.Appointments))
				r.Get("/my", patientAgendaHandler(cfg.Appointments))
				r.Get("/availability", availabilityHandler(cfg.Appointments))
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(appointment.RoleFacilityAdmin))
				r.Get("/facility", facilityAppointmentsHandler(cfg.Appointments))
				r.Get("/facility/agenda-range", agendaRangeHandler(cfg.Appointments))
				r.Patch("/{id}/status", updateStatusHandler(cfg.Appointments))
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(appointment.RoleDoctor))
				r.Get("/doctor/my", doctorAgendaHandler(cfg.Appointments))
				r.Get("/doctor/agenda-range", agendaRangeHandler(cfg.Appointments))
				r.Get("/doctor/availability", doctorAvailabilityHandler(cfg.Appointments))
				r.Patch("/{id}/doctor-status", updateStatusHandler(cfg.Appointments))
			})
		})
	})

	return otelhttp.NewHandler(r, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
