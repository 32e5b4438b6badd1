package payment

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v82"
)

// OAuthError is an error reported by the processor's OAuth token endpoint,
// as opposed to a failure to reach it.
type OAuthError struct {
	Code        string
	Description string
	Err         error
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
}

// Message is the text surfaced to callers: the description when present,
// otherwise the error code.
func (e *OAuthError) Message() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

func (e *OAuthError) Unwrap() error { return e.Err }

// ExchangeCode trades an authorization code for the connected account id at
// the Connect token endpoint.
func (s *StripeGateway) ExchangeCode(ctx context.Context, code string) (string, error) {
	params := &stripe.OAuthTokenParams{
		GrantType:    stripe.String("authorization_code"),
		Code:         stripe.String(code),
		ClientSecret: stripe.String(s.secretKey),
	}
	params.Context = ctx

	token, err := s.api.OAuth.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.OAuthError != "" {
			log.Printf("[OAuth] Exchange rejected (%d): %s", stripeErr.HTTPStatusCode, stripeErr.OAuthError)
			return "", &OAuthError{
				Code:        stripeErr.OAuthError,
				Description: stripeErr.OAuthErrorDescription,
				Err:         err,
			}
		}
		log.Printf("[OAuth] Exchange error: %v", err)
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.StripeUserID == "" {
		return "", errors.New("token response has no stripe_user_id")
	}

	log.Printf("[OAuth] Exchanged code for connected account %s", token.StripeUserID)
	return token.StripeUserID, nil
}
