package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tapkiosk/models"
	"tapkiosk/payment"
	"tapkiosk/services"
)

// IdempotencyKeyHeader is forwarded to the processor on intent creation.
const IdempotencyKeyHeader = "Idempotency-Key"

// RelayHandler serves the relay endpoints. It holds no per-merchant state:
// every request names the connected account it acts on.
type RelayHandler struct {
	gateway  payment.Gateway
	notifier services.Notifier
	now      func() time.Time
}

func NewRelayHandler(gateway payment.Gateway, notifier services.Notifier) *RelayHandler {
	if notifier == nil {
		notifier = services.NopNotifier{}
	}
	return &RelayHandler{
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
	}
}

// ExchangeCode handles POST /oauth/exchange.
func (h *RelayHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req models.ExchangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "Authorization code is required")
		return
	}

	accountID, err := h.gateway.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		var oauthErr *payment.OAuthError
		if errors.As(err, &oauthErr) {
			log.Printf("[OAuth] Exchange rejected: %v", err)
			respondError(w, http.StatusBadRequest, oauthErr.Message())
			return
		}
		log.Printf("[OAuth] Exchange error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to exchange authorization code")
		return
	}

	respondJSON(w, http.StatusOK, models.ExchangeResponse{ConnectedAccountID: accountID})
}

// ConnectionToken handles POST /terminal/connection_token.
func (h *RelayHandler) ConnectionToken(w http.ResponseWriter, r *http.Request) {
	var req models.AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectedAccountID == "" {
		respondError(w, http.StatusBadRequest, "Connected account ID is required")
		return
	}

	secret, err := h.gateway.CreateConnectionToken(r.Context(), req.ConnectedAccountID)
	if err != nil {
		log.Printf("Connection token error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create connection token")
		return
	}

	respondJSON(w, http.StatusOK, models.ConnectionTokenResponse{Secret: secret})
}

// CreateIntent handles POST /terminal/create_intent. A zero amount counts as
// missing.
func (h *RelayHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConnectedAccountID == "" || req.Amount == nil || *req.Amount == 0 || req.Currency == "" {
		respondError(w, http.StatusBadRequest, "Connected account ID, amount, and currency are required")
		return
	}

	intentReq := models.IntentRequest{
		ConnectedAccountID: req.ConnectedAccountID,
		Amount:             *req.Amount,
		Currency:           strings.ToLower(req.Currency),
		IdempotencyKey:     r.Header.Get(IdempotencyKeyHeader),
	}
	pi, err := h.gateway.CreatePaymentIntent(r.Context(), intentReq)
	if err != nil {
		log.Printf("PaymentIntent creation error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create payment intent")
		return
	}

	h.notifier.Notify(r.Context(), services.IntentCreatedMessage(intentReq.ConnectedAccountID, pi, intentReq.Amount, intentReq.Currency))
	respondJSON(w, http.StatusOK, models.CreateIntentResponse{ClientSecret: pi.ClientSecret, ID: pi.ID})
}

// IntentStatus handles GET /terminal/intents/{id}?connectedAccountId=.
func (h *RelayHandler) IntentStatus(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("connectedAccountId")
	intentID := chi.URLParam(r, "id")
	if accountID == "" || intentID == "" {
		respondError(w, http.StatusBadRequest, "Connected account ID and payment intent ID are required")
		return
	}

	pi, err := h.gateway.GetPaymentIntent(r.Context(), accountID, intentID)
	if err != nil {
		log.Printf("PaymentIntent retrieve error: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve payment intent")
		return
	}

	respondJSON(w, http.StatusOK, models.IntentStatusResponse{
		ID:       pi.ID,
		Status:   pi.Status,
		Amount:   pi.Amount,
		Currency: pi.Currency,
	})
}

// Products handles GET /products?connectedAccountId=. Only prices whose
// product exists and is active are returned.
func (h *RelayHandler) Products(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("connectedAccountId")
	if accountID == "" {
		respondError(w, http.StatusBadRequest, "Connected account ID is required")
		return
	}

	catalog, err := h.gateway.ListCatalog(r.Context(), accountID)
	if err != nil {
		log.Printf("Products fetch error: %v", err)
		respondJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Failed to fetch products",
			Details: payment.ProcessorMessage(err),
		})
		return
	}

	all := len(catalog.Prices)
	catalog.Prices = models.ActivePrices(catalog.Prices)
	if catalog.Products == nil {
		catalog.Products = []models.Product{}
	}
	log.Printf("Active prices after filtering for %s: %d of %d", accountID, len(catalog.Prices), all)

	respondJSON(w, http.StatusOK, catalog)
}

// Health handles GET /health.
func (h *RelayHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Timestamp: h.timestamp(),
	})
}

// TestProcessor handles GET /test-stripe by retrieving the relay's own account.
func (h *RelayHandler) TestProcessor(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.gateway.PlatformAccountID(r.Context())
	if err != nil {
		log.Printf("Stripe test error: %v", err)
		respondJSON(w, http.StatusInternalServerError, models.ProcessorCheckResponse{
			Status:          "error",
			StripeConnected: false,
			Error:           payment.ProcessorMessage(err),
			Timestamp:       h.timestamp(),
		})
		return
	}

	respondJSON(w, http.StatusOK, models.ProcessorCheckResponse{
		Status:          "ok",
		StripeConnected: true,
		AccountID:       accountID,
		Timestamp:       h.timestamp(),
	})
}

func (h *RelayHandler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}

// decodeBody reads a JSON body into v, answering 400 itself on failure.
// An empty body decodes as an empty object.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	log.Printf("Error decoding request body for %s: %v", r.URL.Path, err)
	respondError(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}
