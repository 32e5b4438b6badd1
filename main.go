package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tapkiosk/config"
	"tapkiosk/handlers"
	"tapkiosk/payment"
	"tapkiosk/services"
)

const shutdownTimeout = 10 * time.Second

// Main function to start the relay server
func main() {
	configPath := flag.String("config", "", "optional config file (env vars take precedence)")
	flag.Parse()

	cfg, err := config.LoadRelayConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	stripeClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.ProcessorTimeout,
	}
	gateway := payment.NewStripeGateway(payment.StripeOptions{
		SecretKey:  cfg.StripeSecretKey,
		APIURL:     cfg.StripeAPIURL,
		ConnectURL: cfg.StripeConnectURL,
		LocationID: cfg.TerminalLocationID,
		HTTPClient: stripeClient,
	})
	notifier := services.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID)

	var webhook *handlers.StripeWebhookHandler
	if cfg.WebhookSecret != "" {
		webhook = handlers.NewStripeWebhookHandler(cfg.WebhookSecret, notifier)
	}
	router := handlers.NewRouter(handlers.NewRelayHandler(gateway, notifier), webhook, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "relay"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Relay server starting on :%s", cfg.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exited")
}
