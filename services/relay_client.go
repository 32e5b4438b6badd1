package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"tapkiosk/models"
)

// RelayError is a non-2xx answer from the relay. Message is the relay's
// error text, with the processor's details appended when it sent any.
type RelayError struct {
	StatusCode int
	Message    string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

// RelayClient talks to the relay server over HTTP and JSON.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRelayClient(baseURL string, httpClient *http.Client) *RelayClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Health calls GET /health.
func (c *RelayClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeCode trades an OAuth authorization code for a connected account id.
func (c *RelayClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	var out models.ExchangeResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/exchange", models.ExchangeRequest{Code: code}, nil, &out); err != nil {
		return "", err
	}
	return out.ConnectedAccountID, nil
}

// ConnectionToken returns a Terminal connection secret for the account.
func (c *RelayClient) ConnectionToken(ctx context.Context, accountID string) (string, error) {
	var out models.ConnectionTokenResponse
	body := models.AccountRequest{ConnectedAccountID: accountID}
	if err := c.do(ctx, http.MethodPost, "/terminal/connection_token", body, nil, &out); err != nil {
		return "", err
	}
	return out.Secret, nil
}

// Products fetches the account's catalog. Prices is nil when the relay's
// answer carried no prices field.
func (c *RelayClient) Products(ctx context.Context, accountID string) (*models.Catalog, error) {
	var out models.Catalog
	path := "/products?connectedAccountId=" + url.QueryEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIntent asks the relay for a payment intent. A non-empty
// idempotencyKey is sent as the Idempotency-Key header.
func (c *RelayClient) CreateIntent(ctx context.Context, req models.IntentRequest) (*models.PaymentIntent, error) {
	amount := req.Amount
	body := models.CreateIntentRequest{
		ConnectedAccountID: req.ConnectedAccountID,
		Amount:             &amount,
		Currency:           req.Currency,
	}
	var headers http.Header
	if req.IdempotencyKey != "" {
		headers = http.Header{"Idempotency-Key": []string{req.IdempotencyKey}}
	}

	var out models.CreateIntentResponse
	if err := c.do(ctx, http.MethodPost, "/terminal/create_intent", body, headers, &out); err != nil {
		return nil, err
	}
	return &models.PaymentIntent{
		ID:           out.ID,
		ClientSecret: out.ClientSecret,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

// IntentStatus reads back a payment intent's current status.
func (c *RelayClient) IntentStatus(ctx context.Context, accountID, intentID string) (*models.PaymentIntent, error) {
	var out models.PaymentIntent
	path := "/terminal/intents/" + url.PathEscape(intentID) + "?connectedAccountId=" + url.QueryEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *RelayClient) do(ctx context.Context, method, path string, in any, headers http.Header, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return relayError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func relayError(status int, raw []byte) *RelayError {
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &RelayError{StatusCode: status, Message: http.StatusText(status)}
	}
	msg := body.Error
	if body.Details != "" {
		msg += ": " + body.Details
	}
	return &RelayError{StatusCode: status, Message: msg}
}
