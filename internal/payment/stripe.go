// Package payment wraps Stripe PaymentIntents and tracks processed webhook
// events for idempotency.
package payment

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

// IntentParams describes a PaymentIntent to create.
type IntentParams struct {
	Amount      int64 // minor units
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the subset of a Stripe PaymentIntent the application keeps.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Client is an interface for Stripe operations to enable testing with mocks.
type Client interface {
	CreatePaymentIntent(ctx context.Context, params IntentParams) (*Intent, error)
}

// StripeClient implements the Client interface using the real Stripe SDK.
type StripeClient struct{}

// NewStripeClient creates a new Stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// CreatePaymentIntent creates an automatic-payment-methods PaymentIntent.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}
