package models

// PaymentIntent is the slice of a processor payment intent the kiosk needs to
// drive the payment screen.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency,omitempty"`
}

// IntentRequest carries everything needed to create a payment intent on a
// connected account.
type IntentRequest struct {
	ConnectedAccountID string
	Amount             int64
	Currency           string
	IdempotencyKey     string
}

// PaymentStatus is the state of the payment screen.
type PaymentStatus string

const (
	PaymentStatusIdle       PaymentStatus = "idle"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusError      PaymentStatus = "error"
)

// Relay request and response bodies.

type ExchangeRequest struct {
	Code string `json:"code"`
}

type ExchangeResponse struct {
	ConnectedAccountID string `json:"connectedAccountId"`
}

type AccountRequest struct {
	ConnectedAccountID string `json:"connectedAccountId"`
}

type ConnectionTokenResponse struct {
	Secret string `json:"secret"`
}

// CreateIntentRequest uses pointers so a missing field can be told apart from
// a present one.
type CreateIntentRequest struct {
	ConnectedAccountID string `json:"connectedAccountId"`
	Amount             *int64 `json:"amount"`
	Currency           string `json:"currency"`
}

type CreateIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	ID           string `json:"id"`
}

// IntentStatusResponse is a payment intent as reported back to the kiosk. It
// never carries the client secret.
type IntentStatusResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ProcessorCheckResponse struct {
	Status          string `json:"status"`
	StripeConnected bool   `json:"stripeConnected"`
	AccountID       string `json:"accountId,omitempty"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
