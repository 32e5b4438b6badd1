package payment

import (
	"context"

	"tapkiosk/models"
)

// Gateway is the relay's view of the payment processor. Every call except
// ExchangeCode and PlatformAccountID is scoped to a connected account.
type Gateway interface {
	ExchangeCode(ctx context.Context, code string) (accountID string, err error)
	CreateConnectionToken(ctx context.Context, accountID string) (secret string, err error)
	CreatePaymentIntent(ctx context.Context, req models.IntentRequest) (*models.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, accountID, intentID string) (*models.PaymentIntent, error)
	ListCatalog(ctx context.Context, accountID string) (*models.Catalog, error)
	PlatformAccountID(ctx context.Context) (string, error)
}
