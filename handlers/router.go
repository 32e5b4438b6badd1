package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the relay endpoints. webhook may be nil, in which case the
// webhook route is not registered.
func NewRouter(relay *RelayHandler, webhook *StripeWebhookHandler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(JSONRecoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", IdempotencyKeyHeader},
		AllowCredentials: true,
	}))

	r.NotFound(notFound)

	r.Get("/health", relay.Health)
	r.Get("/test-stripe", relay.TestProcessor)
	r.Post("/oauth/exchange", relay.ExchangeCode)
	r.Get("/products", relay.Products)

	r.Route("/terminal", func(r chi.Router) {
		r.Post("/connection_token", relay.ConnectionToken)
		r.Post("/create_intent", relay.CreateIntent)
		r.Get("/intents/{id}", relay.IntentStatus)
	})

	if webhook != nil {
		r.Post("/webhooks/stripe", webhook.HandleWebhook)
	}

	return r
}
