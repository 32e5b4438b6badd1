package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"tapkiosk/models"
)

var (
	ErrLoginRequired       = errors.New("no authorization code or connected account, login required")
	ErrRelayUnavailable    = errors.New("relay server is not reachable")
	ErrNoPrices            = errors.New("catalog response has no prices")
	ErrEmptyCart           = errors.New("Please add items to your cart before proceeding to payment.")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
	ErrAmountOutOfRange    = errors.New("amount outside the allowed range")
	ErrUnsupportedCurrency = errors.New("currency not supported")
)

// Relay is the set of relay calls the kiosk makes. *RelayClient implements it.
type Relay interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
	ExchangeCode(ctx context.Context, code string) (string, error)
	ConnectionToken(ctx context.Context, accountID string) (string, error)
	Products(ctx context.Context, accountID string) (*models.Catalog, error)
	CreateIntent(ctx context.Context, req models.IntentRequest) (*models.PaymentIntent, error)
	IntentStatus(ctx context.Context, accountID, intentID string) (*models.PaymentIntent, error)
}

var _ Relay = (*RelayClient)(nil)

// LoginError is a failed code exchange. The same code may be passed to
// ResolveAccount again to retry, or the caller can return to login.
type LoginError struct {
	Code string
	Err  error
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Message()
}

// Message is the text shown to the merchant.
func (e *LoginError) Message() string {
	var relayErr *RelayError
	if errors.As(e.Err, &relayErr) {
		return relayErr.Message
	}
	return e.Err.Error()
}

func (e *LoginError) Unwrap() error { return e.Err }

// NavState is what the inventory screen is opened with: either a fresh
// authorization code or an account id from an earlier exchange.
type NavState struct {
	Code               string
	ConnectedAccountID string
}

// CheckoutLimits bounds what Checkout will submit.
type CheckoutLimits struct {
	MinAmount  int64
	MaxAmount  int64
	Currencies []string
}

type CheckoutRequest struct {
	AccountID      string
	Cart           *models.Cart
	IdempotencyKey string
}

// PaymentScreenParams is everything the payment screen needs.
type PaymentScreenParams struct {
	PaymentIntentID    string
	ClientSecret       string
	ConnectedAccountID string
	Amount             int64
	Currency           string
}

// InventoryService covers the inventory screen: resolving the account,
// loading the catalog and checking out the cart.
type InventoryService struct {
	relay  Relay
	guard  *ExchangeGuard
	limits CheckoutLimits
	busy   atomic.Bool
	newKey func() string
}

func NewInventoryService(relay Relay, limits CheckoutLimits) *InventoryService {
	return &InventoryService{
		relay:  relay,
		guard:  NewExchangeGuard(relay.ExchangeCode),
		limits: limits,
		newKey: uuid.NewString,
	}
}

// ResolveAccount returns the connected account to use. A code takes
// precedence and is exchanged at most once; failures come back as *LoginError.
func (s *InventoryService) ResolveAccount(ctx context.Context, nav NavState) (string, error) {
	if nav.Code != "" {
		acct, err := s.guard.Exchange(ctx, nav.Code)
		if err != nil {
			log.Printf("[OAuth] Error exchanging code: %v", err)
			return "", &LoginError{Code: nav.Code, Err: err}
		}
		return acct, nil
	}
	if nav.ConnectedAccountID != "" {
		return nav.ConnectedAccountID, nil
	}
	return "", ErrLoginRequired
}

// Load checks the relay is alive and fetches the account's catalog.
func (s *InventoryService) Load(ctx context.Context, accountID string) (*models.Catalog, error) {
	if _, err := s.relay.Health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}

	catalog, err := s.relay.Products(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if catalog.Prices == nil {
		return nil, ErrNoPrices
	}
	catalog.Prices = models.ActivePrices(catalog.Prices)
	return catalog, nil
}

// Refresh re-runs Load.
func (s *InventoryService) Refresh(ctx context.Context, accountID string) (*models.Catalog, error) {
	return s.Load(ctx, accountID)
}

// Checkout creates a payment intent for the cart total. Only one checkout may
// be in flight at a time.
func (s *InventoryService) Checkout(ctx context.Context, req CheckoutRequest) (*PaymentScreenParams, error) {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if req.AccountID == "" {
		return nil, ErrLoginRequired
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInProgress
	}
	defer s.busy.Store(false)

	amount := req.Cart.Total()
	currency := strings.ToLower(req.Cart.Currency())
	if !models.ValidateAmount(amount, s.limits.MinAmount, s.limits.MaxAmount) {
		return nil, fmt.Errorf("%w: %s", ErrAmountOutOfRange, models.FormatAmount(amount, currency))
	}
	if !models.SupportedCurrency(currency, s.limits.Currencies) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = s.newKey()
	}

	pi, err := s.relay.CreateIntent(ctx, models.IntentRequest{
		ConnectedAccountID: req.AccountID,
		Amount:             amount,
		Currency:           currency,
		IdempotencyKey:     key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentScreenParams{
		PaymentIntentID:    pi.ID,
		ClientSecret:       pi.ClientSecret,
		ConnectedAccountID: req.AccountID,
		Amount:             amount,
		Currency:           currency,
	}, nil
}
