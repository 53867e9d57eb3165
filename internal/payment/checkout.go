// Package payment creates Stripe Checkout sessions for story publication
// and printed-copy purchases.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"mintoons/internal/config"
)

// ProductType is what the customer is paying for
type ProductType string

const (
	ProductPublication ProductType = "story_publication"
	ProductPurchase    ProductType = "story_purchase"
)

// Valid reports whether p is a sellable product
func (p ProductType) Valid() bool {
	return p == ProductPublication || p == ProductPurchase
}

var (
	ErrNotConfigured  = errors.New("payments are not configured")
	ErrInvalidProduct = errors.New("invalid product type")
)

// CheckoutRequest describes one checkout
type CheckoutRequest struct {
	UserID        int64
	SessionID     int64
	Product       ProductType
	StoryTitle    string
	CustomerEmail string
}

// CheckoutSession is the provider session the client is redirected to
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Checkout creates hosted checkout sessions
type Checkout interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// StripeCheckout implements Checkout with stripe-go
type StripeCheckout struct {
	api    *client.API
	cfg    config.StripeConfig
	appURL string
	logger *zap.Logger
}

var _ Checkout = (*StripeCheckout)(nil)

// NewStripeCheckout builds a Checkout bound to the configured secret key.
// backends may be nil to use Stripe's production endpoints.
func NewStripeCheckout(cfg config.StripeConfig, appURL string, backends *stripe.Backends, logger *zap.Logger) (*StripeCheckout, error) {
	if cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeCheckout{
		api:    client.New(cfg.SecretKey, backends),
		cfg:    cfg,
		appURL: strings.TrimSuffix(appURL, "/"),
		logger: logger.Named("StripeCheckout"),
	}, nil
}

// CreateCheckout opens a one-item payment session priced by product type
func (s *StripeCheckout) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	amount, name, err := s.price(req)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL(req.SessionID)),
		CancelURL:         stripe.String(s.cancelURL(req.SessionID)),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.UserID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("userId", strconv.FormatInt(req.UserID, 10))
	params.AddMetadata("sessionId", strconv.FormatInt(req.SessionID, 10))
	params.AddMetadata("productType", string(req.Product))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.Int64("user_id", req.UserID),
			zap.Int64("session_id", req.SessionID),
			zap.String("product", string(req.Product)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("checkout_id", sess.ID),
		zap.Int64("user_id", req.UserID),
		zap.String("product", string(req.Product)))
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeCheckout) price(req CheckoutRequest) (int64, string, error) {
	title := req.StoryTitle
	if title == "" {
		title = "Untitled story"
	}
	switch req.Product {
	case ProductPublication:
		return s.cfg.PublicationPriceCent, "Publish: " + title, nil
	case ProductPurchase:
		return s.cfg.PurchasePriceCent, "Printed copy: " + title, nil
	}
	return 0, "", ErrInvalidProduct
}

func (s *StripeCheckout) successURL(sessionID int64) string {
	if s.cfg.SuccessURL != "" {
		return s.cfg.SuccessURL
	}
	return fmt.Sprintf("%s/stories/%d?checkout=success&session_id={CHECKOUT_SESSION_ID}", s.appURL, sessionID)
}

func (s *StripeCheckout) cancelURL(sessionID int64) string {
	if s.cfg.CancelURL != "" {
		return s.cfg.CancelURL
	}
	return fmt.Sprintf("%s/stories/%d?checkout=cancelled", s.appURL, sessionID)
}
