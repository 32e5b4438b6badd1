package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapkiosk/models"
)

// fakeStripe serves the handful of API routes the gateway uses.
type fakeStripe struct {
	t        *testing.T
	mu       sync.Mutex
	requests []*http.Request
	forms    map[string]map[string][]string
	failWith string
}

func newFakeStripe(t *testing.T) (*fakeStripe, *StripeGateway) {
	t.Helper()
	fs := &fakeStripe{t: t, forms: map[string]map[string][]string{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	gw := NewStripeGateway(StripeOptions{
		SecretKey:  "sk_test_123",
		APIURL:     srv.URL,
		ConnectURL: srv.URL,
		LocationID: "tml_123",
	})
	return fs, gw
}

func (f *fakeStripe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.forms[r.Method+" "+r.URL.Path] = r.Form
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if f.failWith != "" {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"` + f.failWith + `"}}`))
		return
	}

	switch r.Method + " " + r.URL.Path {
	case "GET /v1/products":
		w.Write([]byte(`{"object":"list","url":"/v1/products","has_more":false,"data":[
			{"id":"prod_active","object":"product","name":"Coffee","active":true,"images":["https://img/coffee.png"]},
			{"id":"prod_retired","object":"product","name":"Tea","active":false}
		]}`))
	case "GET /v1/prices":
		w.Write([]byte(`{"object":"list","url":"/v1/prices","has_more":false,"data":[
			{"id":"price_coffee","object":"price","unit_amount":500,"currency":"usd","active":true,
			 "product":{"id":"prod_active","object":"product","name":"Coffee","description":"Hot","active":true}},
			{"id":"price_tea","object":"price","unit_amount":300,"currency":"usd","active":true,
			 "product":{"id":"prod_retired","object":"product","name":"Tea","active":false}}
		]}`))
	case "POST /v1/payment_intents":
		w.Write([]byte(`{"id":"pi_1","object":"payment_intent","client_secret":"pi_1_secret_x","amount":1500,"currency":"usd","status":"requires_payment_method"}`))
	case "GET /v1/payment_intents/pi_1":
		w.Write([]byte(`{"id":"pi_1","object":"payment_intent","client_secret":"pi_1_secret_x","amount":1500,"currency":"usd","status":"succeeded"}`))
	case "POST /v1/terminal/connection_tokens":
		w.Write([]byte(`{"object":"terminal.connection_token","secret":"pst_test_abc","location":"tml_123"}`))
	case "GET /v1/account":
		w.Write([]byte(`{"id":"acct_platform","object":"account"}`))
	case "POST /oauth/token":
		w.Write([]byte(`{"stripe_user_id":"acct_connected"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Unrecognized request URL"}}`))
	}
}

func (f *fakeStripe) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.requests)
	return f.requests[len(f.requests)-1]
}

func TestStripeGateway_ListCatalog(t *testing.T) {
	fs, gw := newFakeStripe(t)

	catalog, err := gw.ListCatalog(context.Background(), "acct_1")
	require.NoError(t, err)

	require.Len(t, catalog.Products, 2)
	assert.Equal(t, []string{"https://img/coffee.png"}, catalog.Products[0].Images)
	assert.False(t, catalog.Products[1].Active)

	require.Len(t, catalog.Prices, 2)
	assert.Equal(t, int64(500), catalog.Prices[0].UnitAmount)
	require.NotNil(t, catalog.Prices[0].Product)
	assert.Equal(t, "Hot", catalog.Prices[0].Product.Description)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range fs.requests {
		assert.Equal(t, "acct_1", r.Header.Get("Stripe-Account"), r.URL.Path)
	}
	priceForm := fs.forms["GET /v1/prices"]
	assert.Equal(t, []string{"data.product"}, priceForm["expand[0]"])
	assert.Equal(t, []string{"true"}, priceForm["active"])
}

func TestStripeGateway_CreatePaymentIntent(t *testing.T) {
	fs, gw := newFakeStripe(t)

	pi, err := gw.CreatePaymentIntent(context.Background(), models.IntentRequest{
		ConnectedAccountID: "acct_1",
		Amount:             1500,
		Currency:           "usd",
		IdempotencyKey:     "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, "pi_1_secret_x", pi.ClientSecret)

	r := fs.last()
	assert.Equal(t, "acct_1", r.Header.Get("Stripe-Account"))
	assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

	form := fs.forms["POST /v1/payment_intents"]
	assert.Equal(t, []string{"1500"}, form["amount"])
	assert.Equal(t, []string{"usd"}, form["currency"])
	assert.Equal(t, []string{"card_present"}, form["payment_method_types[0]"])
	assert.Equal(t, []string{"automatic"}, form["capture_method"])
}

func TestStripeGateway_GetPaymentIntent(t *testing.T) {
	_, gw := newFakeStripe(t)

	pi, err := gw.GetPaymentIntent(context.Background(), "acct_1", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", pi.Status)
	assert.Equal(t, int64(1500), pi.Amount)
}

func TestStripeGateway_CreateConnectionToken(t *testing.T) {
	fs, gw := newFakeStripe(t)

	secret, err := gw.CreateConnectionToken(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, "pst_test_abc", secret)
	assert.Equal(t, "acct_1", fs.last().Header.Get("Stripe-Account"))
	assert.Equal(t, []string{"tml_123"}, fs.forms["POST /v1/terminal/connection_tokens"]["location"])
}

func TestStripeGateway_PlatformAccountID(t *testing.T) {
	fs, gw := newFakeStripe(t)

	id, err := gw.PlatformAccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acct_platform", id)
	assert.Empty(t, fs.last().Header.Get("Stripe-Account"))
}

func TestStripeGateway_PlatformAccountIDHonoursContext(t *testing.T) {
	fs, gw := newFakeStripe(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.PlatformAccountID(ctx)
	require.Error(t, err)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Empty(t, fs.requests)
}

func TestStripeGateway_ExchangeCodeUsesConnectURL(t *testing.T) {
	_, gw := newFakeStripe(t)

	id, err := gw.ExchangeCode(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "acct_connected", id)
}

func TestStripeGateway_ErrorsCarryProcessorMessage(t *testing.T) {
	fs, gw := newFakeStripe(t)
	fs.failWith = "No such account: acct_missing"

	_, err := gw.ListCatalog(context.Background(), "acct_missing")
	require.Error(t, err)
	assert.Equal(t, "No such account: acct_missing", ProcessorMessage(err))

	// A 500 is not retried.
	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Len(t, fs.requests, 1)
}
