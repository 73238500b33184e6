package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/angelmondragon/livebag-backend/api/controllers"
	bagcontrollers "github.com/angelmondragon/livebag-backend/api/controllers/bags"
	"github.com/angelmondragon/livebag-backend/api/middleware"
	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/redis"
)

const serverName = "livebag-api"

type redisStore interface {
	redis.IdempotencyStore
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	bagService bagcontrollers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/bags", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/", bagcontrollers.List(bagService, logg))
		r.Route("/{bagId}", func(r chi.Router) {
			r.Get("/", bagcontrollers.Detail(bagService, logg))
			r.Get("/history", bagcontrollers.History(bagService, logg))
			r.Get("/quote", bagcontrollers.Quote(bagService, logg))

			r.Post("/handler", bagcontrollers.AssignHandler(bagService, logg))
			r.Post("/delivery", bagcontrollers.ConfirmDelivery(bagService, logg))
			r.Post("/address", bagcontrollers.UpdateAddress(bagService, logg))
			r.Post("/charges", bagcontrollers.RecordCharge(bagService, logg))
			r.Post("/status/advance", bagcontrollers.AdvanceStatus(bagService, logg))
			r.Post("/status/revert", bagcontrollers.RevertStatus(bagService, logg))
			r.Post("/label", bagcontrollers.GenerateLabel(bagService, logg))
			r.Post("/tracking/sync", bagcontrollers.SyncTracking(bagService, logg))

			r.Route("/payment", func(r chi.Router) {
				r.Post("/manual", bagcontrollers.SubmitManualPayment(bagService, logg))
				r.Post("/revalidate", bagcontrollers.RevalidatePayment(bagService, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(enums.MemberRoleAdmin, logg))
					r.Post("/confirm", bagcontrollers.ConfirmPayment(bagService, logg))
					r.Post("/approve", bagcontrollers.ApprovePayment(bagService, logg))
					r.Post("/reject", bagcontrollers.RejectPayment(bagService, logg))
				})
			})
		})
	})

	return otelhttp.NewHandler(r, serverName)
}
