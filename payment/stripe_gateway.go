package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"tapkiosk/models"
)

// StripeOptions configures a StripeGateway.
type StripeOptions struct {
	SecretKey string
	// APIURL and ConnectURL override the processor endpoints, mostly for tests.
	APIURL     string
	ConnectURL string
	// LocationID scopes terminal connection tokens when set.
	LocationID string
	HTTPClient *http.Client
}

var _ Gateway = (*StripeGateway)(nil)

// StripeGateway implements Gateway on top of the Stripe API. Account scoping
// is done per request with the Stripe-Account header.
type StripeGateway struct {
	api        *client.API
	secretKey  string
	locationID string
}

// NewStripeGateway builds a gateway with its own API and Connect backends.
// Network retries are disabled: a failed call is surfaced to the caller as is.
func NewStripeGateway(opts StripeOptions) *StripeGateway {
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig(opts.APIURL, opts.HTTPClient)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig(opts.ConnectURL, opts.HTTPClient)),
		Uploads: stripe.GetBackend(stripe.UploadsBackend),
	}

	return &StripeGateway{
		api:        client.New(opts.SecretKey, backends),
		secretKey:  opts.SecretKey,
		locationID: opts.LocationID,
	}
}

// backendConfig leaves URL unset when empty so the backend's default applies.
func backendConfig(url string, httpClient *http.Client) *stripe.BackendConfig {
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if url != "" {
		cfg.URL = stripe.String(url)
	}
	return cfg
}

func (s *StripeGateway) CreateConnectionToken(ctx context.Context, accountID string) (string, error) {
	params := &stripe.TerminalConnectionTokenParams{}
	if s.locationID != "" {
		params.Location = stripe.String(s.locationID)
	}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	token, err := s.api.TerminalConnectionTokens.New(params)
	if err != nil {
		log.Printf("[Stripe] Connection token error for %s: %v", accountID, err)
		return "", fmt.Errorf("failed to create Stripe connection token: %w", err)
	}
	return token.Secret, nil
}

// CreatePaymentIntent creates a card_present intent with automatic capture.
func (s *StripeGateway) CreatePaymentIntent(ctx context.Context, req models.IntentRequest) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card_present"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Context = ctx
	params.SetStripeAccount(req.ConnectedAccountID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		log.Printf("[Stripe] PaymentIntent error for %s: %v", req.ConnectedAccountID, err)
		return nil, fmt.Errorf("failed to create Stripe payment intent: %w", err)
	}

	log.Printf("[Stripe] Created PaymentIntent %s (%d %s) on %s", pi.ID, pi.Amount, pi.Currency, req.ConnectedAccountID)
	return toPaymentIntent(pi), nil
}

func (s *StripeGateway) GetPaymentIntent(ctx context.Context, accountID, intentID string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Stripe payment intent %s: %w", intentID, err)
	}
	return toPaymentIntent(pi), nil
}

// ListCatalog lists every product on the account and every active price with
// its product expanded. Inactive products are not filtered here.
func (s *StripeGateway) ListCatalog(ctx context.Context, accountID string) (*models.Catalog, error) {
	productParams := &stripe.ProductListParams{}
	productParams.Context = ctx
	productParams.SetStripeAccount(accountID)

	catalog := &models.Catalog{
		Products: []models.Product{},
		Prices:   []models.Price{},
	}

	products := s.api.Products.List(productParams)
	for products.Next() {
		catalog.Products = append(catalog.Products, toProduct(products.Product()))
	}
	if err := products.Err(); err != nil {
		return nil, fmt.Errorf("failed to list Stripe products: %w", err)
	}
	log.Printf("[Stripe] Products found for %s: %d", accountID, len(catalog.Products))

	priceParams := &stripe.PriceListParams{
		Active: stripe.Bool(true),
	}
	priceParams.Context = ctx
	priceParams.AddExpand("data.product")
	priceParams.SetStripeAccount(accountID)

	prices := s.api.Prices.List(priceParams)
	for prices.Next() {
		catalog.Prices = append(catalog.Prices, toPrice(prices.Price()))
	}
	if err := prices.Err(); err != nil {
		return nil, fmt.Errorf("failed to list Stripe prices: %w", err)
	}
	log.Printf("[Stripe] Prices found for %s: %d", accountID, len(catalog.Prices))

	return catalog, nil
}

// PlatformAccountID retrieves the account that owns the secret key.
func (s *StripeGateway) PlatformAccountID(ctx context.Context) (string, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := s.api.Accounts.GetByID("", params)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve Stripe account: %w", err)
	}
	return acct.ID, nil
}

// ProcessorMessage extracts the processor's own message from err when there
// is one.
func ProcessorMessage(err error) string {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		return oauthErr.Message()
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}

func toProduct(p *stripe.Product) models.Product {
	return models.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Images:      p.Images,
		Active:      p.Active && !p.Deleted,
	}
}

func toPrice(p *stripe.Price) models.Price {
	price := models.Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
	}
	// An unexpanded product only carries its id and is never active.
	if p.Product != nil {
		product := toProduct(p.Product)
		price.Product = &product
	}
	return price
}

func toPaymentIntent(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}
