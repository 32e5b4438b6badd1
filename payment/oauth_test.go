package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

// newConnectGateway points a gateway's Connect backend at a token endpoint
// answering status and body.
func newConnectGateway(t *testing.T, status int, body string) (*StripeGateway, *countingTransport) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "sk_test_123", r.PostForm.Get("client_secret"))
		assert.Equal(t, "abc123", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	transport := &countingTransport{}
	gw := NewStripeGateway(StripeOptions{
		SecretKey:  "sk_test_123",
		ConnectURL: srv.URL,
		HTTPClient: &http.Client{Transport: transport},
	})
	return gw, transport
}

func TestExchangeCode_Success(t *testing.T) {
	gw, transport := newConnectGateway(t, http.StatusOK,
		`{"access_token":"sk_acct","stripe_user_id":"acct_1","scope":"read_write","token_type":"bearer"}`)

	accountID, err := gw.ExchangeCode(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, "acct_1", accountID)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestExchangeCode_ProcessorError(t *testing.T) {
	gw, _ := newConnectGateway(t, http.StatusBadRequest,
		`{"error":"invalid_grant","error_description":"Authorization code does not exist: abc123"}`)

	_, err := gw.ExchangeCode(context.Background(), "abc123")

	var oerr *OAuthError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, "invalid_grant", oerr.Code)
	assert.Equal(t, "Authorization code does not exist: abc123", oerr.Message())
	assert.Equal(t, "Authorization code does not exist: abc123", ProcessorMessage(err))
}

func TestExchangeCode_ErrorWithoutDescription(t *testing.T) {
	gw, _ := newConnectGateway(t, http.StatusBadRequest, `{"error":"invalid_scope"}`)

	_, err := gw.ExchangeCode(context.Background(), "abc123")

	var oerr *OAuthError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, "invalid_scope", oerr.Message())
	assert.Equal(t, "invalid_scope", ProcessorMessage(err))
}

func TestExchangeCode_ServerErrorNotRetried(t *testing.T) {
	gw, transport := newConnectGateway(t, http.StatusInternalServerError,
		`{"error":"server_error","error_description":"Try again later"}`)

	_, err := gw.ExchangeCode(context.Background(), "abc123")

	require.Error(t, err)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestExchangeCode_MissingAccountID(t *testing.T) {
	gw, _ := newConnectGateway(t, http.StatusOK, `{"access_token":"sk_acct"}`)

	_, err := gw.ExchangeCode(context.Background(), "abc123")

	assert.ErrorContains(t, err, "stripe_user_id")
}

func TestExchangeCode_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewStripeGateway(StripeOptions{SecretKey: "sk_test_123", ConnectURL: url})
	_, err := gw.ExchangeCode(context.Background(), "abc123")

	require.Error(t, err)
	var oerr *OAuthError
	assert.False(t, errors.As(err, &oerr))
	assert.ErrorContains(t, err, "failed to exchange authorization code")
}
