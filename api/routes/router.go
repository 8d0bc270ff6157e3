package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadrelay/leadrelay-backend/api/controllers"
	"github.com/leadrelay/leadrelay-backend/api/middleware"
	"github.com/leadrelay/leadrelay-backend/internal/destinations"
	"github.com/leadrelay/leadrelay-backend/internal/leads"
	"github.com/leadrelay/leadrelay-backend/pkg/config"
	"github.com/leadrelay/leadrelay-backend/pkg/db"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/redis"
)

// Services bundles everything the router hands to controllers.
type Services struct {
	Ingest       controllers.EventProcessor
	Leads        leads.Service
	Destinations *destinations.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	services Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Platform webhooks authenticate with their own HMAC signature, never
	// the service token.
	r.Route("/webhooks/platform", func(r chi.Router) {
		r.Get("/", controllers.PlatformWebhookVerify(cfg.Platform, logg))
		r.Post("/", controllers.PlatformWebhookReceive(services.Ingest, cfg.Platform, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ServiceAuth(cfg.App.ServiceToken, logg))

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", controllers.LeadList(services.Leads, logg))
			r.Get("/stats", controllers.LeadStats(services.Leads, logg))
			r.Post("/bulk-status", controllers.LeadBulkUpdateStatus(services.Leads, logg))
			r.Get("/{leadId}", controllers.LeadDetail(services.Leads, logg))
			r.Post("/{leadId}/status", controllers.LeadUpdateStatus(services.Leads, logg))
		})

		r.Route("/destinations", func(r chi.Router) {
			r.Get("/", controllers.DestinationList(services.Destinations, logg))
			r.Post("/", controllers.DestinationCreate(services.Destinations, logg))
			r.Route("/{destinationId}", func(r chi.Router) {
				r.Get("/", controllers.DestinationDetail(services.Destinations, logg))
				r.Patch("/", controllers.DestinationUpdate(services.Destinations, logg))
				r.Delete("/", controllers.DestinationDelete(services.Destinations, logg))
				r.Get("/bindings", controllers.DestinationBindings(services.Destinations, logg))
				r.Put("/bindings", controllers.DestinationSetBindings(services.Destinations, logg))
				r.Get("/stats", controllers.DestinationStats(services.Destinations, logg))
				r.Post("/test", controllers.DestinationTestDelivery(services.Destinations, logg))
			})
		})
	})

	return r
}
