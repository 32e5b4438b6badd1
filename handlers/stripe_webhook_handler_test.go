package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  testWebhookSecret,
	})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func intentEvent(eventType, status string) string {
	return `{"id":"evt_1","object":"event","api_version":"2024-12-18.acacia","type":"` + eventType + `","account":"acct_1",` +
		`"data":{"object":{"id":"pi_1","object":"payment_intent","amount":1500,"currency":"usd","status":"` + status + `"}}}`
}

func TestWebhook_PaymentIntentSucceeded(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStripeWebhookHandler(testWebhookSecret, notifier)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, intentEvent("payment_intent.succeeded", "succeeded")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "succeeded")
	assert.Contains(t, notifier.messages[0], "$15.00")
	assert.Contains(t, notifier.messages[0], "acct_1")
}

func TestWebhook_PaymentIntentFailed(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStripeWebhookHandler(testWebhookSecret, notifier)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, intentEvent("payment_intent.payment_failed", "requires_payment_method")))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "failed")
}

func TestWebhook_UnhandledTypeAcknowledged(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStripeWebhookHandler(testWebhookSecret, notifier)

	payload := `{"id":"evt_2","object":"event","type":"product.created","data":{"object":{"id":"prod_1","object":"product"}}}`
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, signedWebhookRequest(t, payload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, notifier.messages)
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStripeWebhookHandler(testWebhookSecret, notifier)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(intentEvent("payment_intent.succeeded", "succeeded")))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, notifier.messages)
}

func TestWebhook_MountedOnlyWithHandler(t *testing.T) {
	h := NewRelayHandler(&fakeGateway{}, nil)

	withoutWebhook := NewRouter(h, nil, nil)
	rec := httptest.NewRecorder()
	withoutWebhook.ServeHTTP(rec, signedWebhookRequest(t, intentEvent("payment_intent.succeeded", "succeeded")))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	withWebhook := NewRouter(h, NewStripeWebhookHandler(testWebhookSecret, nil), nil)
	rec = httptest.NewRecorder()
	withWebhook.ServeHTTP(rec, signedWebhookRequest(t, intentEvent("payment_intent.succeeded", "succeeded")))
	assert.Equal(t, http.StatusOK, rec.Code)
}
