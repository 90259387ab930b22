package handler

import (
	"log"
	"net/http"

	"storefront/internal/catalog"
	"storefront/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services holds what the router dispatches to. A nil entry, like a missing
// configuration value, makes its routes answer with a configuration error.
type Services struct {
	Catalog  CatalogServer
	Checkout CheckoutCreator
	Webhooks NotificationHandler
	Submit   Submitter
}

func configurationError(logger *log.Logger, route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Printf("Missing configuration for %s", route)
		http.Error(w, "Server configuration error", http.StatusInternalServerError)
	})
}

func route(logger *log.Logger, path string, ready bool, build func() http.Handler) http.Handler {
	if !ready {
		return configurationError(logger, path)
	}
	return build()
}

func NewRouter(logger *log.Logger, cfg *config.Config, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins, cfg.SiteURL))

	catalogReady := svc.Catalog != nil && cfg.CatalogRecords.Configured()
	mediaReady := catalogReady && cfg.Bucket.Configured()
	ordersReady := cfg.OrderRecords.Configured()

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/products", route(logger, "/v1/products", mediaReady, func() http.Handler {
			return NewCatalogHandler(logger, svc.Catalog, catalog.KeyProducts)
		}))
		r.Method(http.MethodGet, "/events", route(logger, "/v1/events", mediaReady, func() http.Handler {
			return NewCatalogHandler(logger, svc.Catalog, catalog.KeyEvents)
		}))
		r.Method(http.MethodGet, "/deals", route(logger, "/v1/deals", catalogReady, func() http.Handler {
			return NewCatalogHandler(logger, svc.Catalog, catalog.KeyDeals)
		}))

		r.Method(http.MethodPost, "/create-checkout", route(logger, "/v1/create-checkout",
			ordersReady && cfg.Stripe.SecretKey != "" && svc.Checkout != nil, func() http.Handler {
				return NewCheckoutHandler(logger, svc.Checkout)
			}))
		r.Method(http.MethodPost, "/stripe-webhook", route(logger, "/v1/stripe-webhook",
			ordersReady && svc.Webhooks != nil, func() http.Handler {
				return NewWebhookHandler(logger, svc.Webhooks)
			}))
		r.Method(http.MethodPost, "/submit-order", route(logger, "/v1/submit-order",
			ordersReady && svc.Submit != nil, func() http.Handler {
				return NewSubmitOrderHandler(logger, svc.Submit)
			}))
		r.Method(http.MethodPost, "/submit-contact", route(logger, "/v1/submit-contact",
			ordersReady && svc.Submit != nil, func() http.Handler {
				return NewSubmitContactHandler(logger, svc.Submit)
			}))
	})

	return r
}
