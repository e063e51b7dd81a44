package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/nordstil-checkout/api/controllers"
	cartcontrollers "github.com/angelmondragon/nordstil-checkout/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/nordstil-checkout/api/controllers/checkout"
	"github.com/angelmondragon/nordstil-checkout/api/middleware"
	"github.com/angelmondragon/nordstil-checkout/internal/checkout"
	"github.com/angelmondragon/nordstil-checkout/internal/reconciliation"
	"github.com/angelmondragon/nordstil-checkout/pkg/config"
	"github.com/angelmondragon/nordstil-checkout/pkg/enums"
	"github.com/angelmondragon/nordstil-checkout/pkg/logger"
	"github.com/angelmondragon/nordstil-checkout/pkg/metrics"
	pkgredis "github.com/angelmondragon/nordstil-checkout/pkg/redis"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Idempotency    pkgredis.IdempotencyStore
	Cart           cartcontrollers.Service
	Checkout       checkout.Service
	Reconciliation reconciliation.Service
	HTTPMetrics    *metrics.HTTPMetrics
	Gatherer       prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Use(middleware.CartOwner(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Cart, logg))
			r.Put("/items", cartcontrollers.CartUpsertItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
			r.Put("/custom-items", cartcontrollers.CartUpsertCustomItem(deps.Cart, logg))
			r.Delete("/custom-items/{itemId}", cartcontrollers.CartRemoveCustomItem(deps.Cart, logg))
		})

		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", checkoutcontrollers.SessionCreate(deps.Checkout, logg))
			r.Get("/{sessionId}", checkoutcontrollers.SessionFetch(deps.Checkout, logg))
			r.Patch("/{sessionId}/fields", checkoutcontrollers.SessionUpdateField(deps.Checkout, logg))
			r.Post("/{sessionId}/address-mode", checkoutcontrollers.SessionAddressMode(deps.Checkout, logg))
			r.Post("/{sessionId}/submit", checkoutcontrollers.SessionSubmit(deps.Checkout, logg))
			r.Post("/{sessionId}/confirm", checkoutcontrollers.SessionConfirm(deps.Checkout, logg))
			r.Delete("/{sessionId}", checkoutcontrollers.SessionAbandon(deps.Checkout, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/reconciliations", func(r chi.Router) {
			r.Get("/", controllers.AdminReconciliations(deps.Reconciliation, logg))
			r.Post("/{id}/resolve", controllers.AdminResolveReconciliation(deps.Reconciliation, logg))
		})
	})

	return r
}
