package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"tapkiosk/models"
	"tapkiosk/services"
)

// StripeWebhookHandler receives payment intent events from connected
// accounts. The relay keeps no state, so events are logged and announced.
type StripeWebhookHandler struct {
	endpointSecret string
	notifier       services.Notifier
}

func NewStripeWebhookHandler(endpointSecret string, notifier services.Notifier) *StripeWebhookHandler {
	if notifier == nil {
		notifier = services.NopNotifier{}
	}
	return &StripeWebhookHandler{
		endpointSecret: endpointSecret,
		notifier:       notifier,
	}
}

// HandleWebhook processes incoming Stripe webhook events
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Webhook] Error reading payload: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		log.Printf("[Webhook] Error verifying signature: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		h.handlePaymentIntent(r, event, true)
	case stripe.EventTypePaymentIntentPaymentFailed, stripe.EventTypePaymentIntentCanceled:
		h.handlePaymentIntent(r, event, false)
	default:
		log.Printf("[Webhook] Unhandled event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) handlePaymentIntent(r *http.Request, event stripe.Event, succeeded bool) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Printf("[Webhook] Error parsing payment intent in %s: %v", event.ID, err)
		return
	}

	log.Printf("[Webhook] %s: intent %s on %s, status %s", event.Type, pi.ID, event.Account, pi.Status)
	intent := &models.PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
	}
	h.notifier.Notify(r.Context(), services.IntentOutcomeMessage(event.Account, intent, succeeded))
}
