package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookinga/bookinga-backend/api/controllers"
	"github.com/bookinga/bookinga-backend/api/middleware"
	"github.com/bookinga/bookinga-backend/pkg/config"
	"github.com/bookinga/bookinga-backend/pkg/logger"
	pkgredis "github.com/bookinga/bookinga-backend/pkg/redis"
)

// NotificationsService backs the notification and device token routes.
type NotificationsService interface {
	controllers.NotificationEnqueuer
	controllers.DeviceTokenRegistry
}

// Deps carries the services the router mounts. Nil pingers are skipped by readiness; a nil
// idempotency store disables replay protection.
type Deps struct {
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Appointments  controllers.AppointmentReader
	Actions       controllers.AppointmentActor
	Notifications NotificationsService
	Live          http.Handler
	Metrics       http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	loc := cfg.App.Location()
	idempotent := middleware.Idempotency(deps.Idempotency, 0, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/salons/{salonID}", func(r chi.Router) {
			r.Get("/appointments", controllers.ListAppointments(deps.Appointments, loc, logg))
			r.Post("/appointments/refresh", controllers.RefreshAppointments(deps.Appointments, loc, logg))
			r.Post("/appointments/{appointmentID}/{action}", controllers.AppointmentAction(deps.Actions, logg))
			if deps.Live != nil {
				r.Method(http.MethodGet, "/live", deps.Live)
			}
		})

		r.Route("/device-tokens", func(r chi.Router) {
			r.Post("/", controllers.RegisterDeviceToken(deps.Notifications, logg))
			r.Delete("/", controllers.RemoveDeviceToken(deps.Notifications, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.CreateNotification(deps.Notifications, logg))
			r.With(idempotent).Post("/bulk", controllers.CreateBulkNotification(deps.Notifications, logg))
		})
	})

	return r
}
