package payment

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CouponRequest struct {
	Name      string
	AmountOff int64
	Currency  string
}

type SessionRequest struct {
	Currency         string
	LineItems        []LineItem
	SuccessURL       string
	CancelURL        string
	CustomerEmail    string
	Metadata         map[string]string
	CouponID         string
	CollectAddresses bool
	AllowedCountries []string
}

// StripeClient talks to the processor through the official SDK. A nil
// backends value uses the SDK's default endpoints.
type StripeClient struct {
	api *client.API
}

func NewStripeClient(secretKey string, backends *stripe.Backends) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeClient{api: api}
}

// CreateCoupon creates a single-use fixed-amount coupon and returns its id.
func (c *StripeClient) CreateCoupon(ctx context.Context, req CouponRequest) (string, error) {
	params := &stripe.CouponParams{
		AmountOff: stripe.Int64(req.AmountOff),
		Currency:  stripe.String(req.Currency),
		Name:      stripe.String(req.Name),
		Duration:  stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx

	coupon, err := c.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create coupon: %w", err)
	}
	return coupon.ID, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.CustomerEmail),
	}
	params.Context = ctx

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	if req.CollectAddresses {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		}
		params.BillingAddressCollection = stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired))
	}

	for _, item := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if req.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(req.CouponID)},
		}
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return toSession(s), nil
}

func (c *StripeClient) GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session %s: %w", id, err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	if s.ShippingDetails != nil {
		out.ShippingDetails = &models.SessionParty{
			Name:    s.ShippingDetails.Name,
			Address: toAddress(s.ShippingDetails.Address),
		}
	}
	if s.CustomerDetails != nil {
		out.CustomerDetails = &models.SessionParty{
			Name:    s.CustomerDetails.Name,
			Address: toAddress(s.CustomerDetails.Address),
		}
	}
	return out
}

func toAddress(a *stripe.Address) *models.Address {
	if a == nil {
		return nil
	}
	return &models.Address{
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
