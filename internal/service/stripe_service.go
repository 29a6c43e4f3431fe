package service

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// CheckoutParams carries everything needed to open a payment session. The
// metadata must be sufficient to locate and reverse the exact slot later
// without re-querying the booking record.
type CheckoutParams struct {
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

// PaymentClient is the payment-processor capability consumed by the
// booking flows.
type PaymentClient interface {
	CreateCheckoutSession(p CheckoutParams) (sessionID, redirectURL string, err error)
}

// StripeService wraps an explicitly constructed Stripe client. No
// package-global key is set; the constructor fails fast when the secret is
// absent.
type StripeService struct {
	api *client.API
}

func NewStripeService(secretKey string) (*StripeService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is not set")
	}
	return &StripeService{api: client.New(secretKey, nil)}, nil
}

func (s *StripeService) CreateCheckoutSession(p CheckoutParams) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
					UnitAmount: stripe.Int64(p.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		ExpiresAt:  stripe.Int64(p.ExpiresAt.Unix()),
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", err
	}
	return sess.ID, sess.URL, nil
}

// GetSession fetches a checkout session, used by the payment verification
// endpoint.
func (s *StripeService) GetSession(sessionID string) (*stripe.CheckoutSession, error) {
	return s.api.CheckoutSessions.Get(sessionID, nil)
}

// VerifyEvent checks the processor signature over the raw payload and
// parses the event. Payload contents are never trusted before this check.
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}
