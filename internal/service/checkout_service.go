package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"storefront/internal/models"
	"storefront/internal/payment"
)

const (
	OrdersTable   = "Orders"
	ContactsTable = "Contacts"

	shippingCountry = "US"
)

var (
	ErrInvalidCart     = errors.New("invalid cart")
	ErrOrderCreation   = errors.New("failed to create order")
	ErrCheckoutSession = errors.New("failed to create checkout session")
)

// RecordsClient is the subset of the records API used for orders and
// contacts.
type RecordsClient interface {
	Create(ctx context.Context, table string, fields map[string]any) (string, error)
	CreateRaw(ctx context.Context, table string, body []byte) (string, error)
	Update(ctx context.Context, table, id string, fields map[string]any) error
}

type PaymentClient interface {
	CreateCoupon(ctx context.Context, req payment.CouponRequest) (string, error)
	CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*models.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error)
}

type CheckoutService struct {
	records  RecordsClient
	payments PaymentClient
	siteURL  string
	currency string
	logger   *log.Logger
}

func NewCheckoutService(logger *log.Logger, records RecordsClient, payments PaymentClient, siteURL, currency string) *CheckoutService {
	if currency == "" {
		currency = "usd"
	}
	return &CheckoutService{
		records:  records,
		payments: payments,
		siteURL:  siteURL,
		currency: currency,
		logger:   logger,
	}
}

func validateCart(cart []models.CartItem) error {
	if len(cart) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}
	for i, item := range cart {
		if item.Qty <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidCart, i+1, item.Qty)
		}
		if item.Price < 0 || math.IsNaN(item.Price) {
			return fmt.Errorf("%w: item %d has a negative price", ErrInvalidCart, i+1)
		}
	}
	return nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ItemsSummary renders the human-readable order lines stored on the order.
func ItemsSummary(cart []models.CartItem, discount *models.Discount) string {
	lines := make([]string, 0, len(cart))
	for _, item := range cart {
		var b strings.Builder
		if item.SKU != "" {
			fmt.Fprintf(&b, "[%s] ", item.SKU)
		}
		fmt.Fprintf(&b, "%s x%d", item.Name, item.Qty)
		if item.SelectedColor != "" {
			fmt.Fprintf(&b, " (%s)", item.SelectedColor)
		}
		if item.SelectedSize != "" {
			fmt.Fprintf(&b, " [%s]", item.SelectedSize)
		}
		fmt.Fprintf(&b, " - $%.2f", item.Price*float64(item.Qty))
		lines = append(lines, b.String())
	}

	summary := strings.Join(lines, "\n")
	if discount != nil && discount.Name != "" {
		summary += fmt.Sprintf("\n---\n🏷️ %s: -$%.2f", discount.Name, discount.Amount)
	}
	return summary
}

func lineItems(cart []models.CartItem, shipping float64) []payment.LineItem {
	items := make([]payment.LineItem, 0, len(cart)+1)
	for _, item := range cart {
		name := item.Name
		if item.SelectedColor != "" {
			name += " (" + item.SelectedColor + ")"
		}
		if item.SelectedSize != "" {
			name += " [" + item.SelectedSize + "]"
		}
		items = append(items, payment.LineItem{
			Name:        name,
			Description: item.SKU,
			UnitAmount:  toCents(item.Price),
			Quantity:    item.Qty,
		})
	}
	if shipping > 0 {
		items = append(items, payment.LineItem{Name: "Shipping", UnitAmount: toCents(shipping), Quantity: 1})
	}
	return items
}

// CreateCheckout records a pending order and opens a hosted payment session
// linked to it through metadata.order_id. A failure after the order is
// created leaves that order pending.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	if err := validateCart(req.Cart); err != nil {
		return nil, err
	}

	localPickup := bool(req.Customer.LocalPickup)
	address := models.AddressPendingCheckout
	if localPickup {
		address = models.AddressLocalPickup
	}

	order := models.Order{
		CustomerName: req.Customer.FullName(),
		Email:        req.Customer.Email,
		Address:      address,
		Items:        ItemsSummary(req.Cart, req.Discount),
		Total:        req.Totals.Total,
		Status:       models.OrderStatusPendingPayment,
		Notes:        req.Customer.Notes,
	}

	orderID, err := s.records.Create(ctx, OrdersTable, order.Fields())
	if err != nil {
		s.logger.Printf("Error creating order for %s: %v", req.Customer.Email, err)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}
	s.logger.Printf("Created pending order %s for %s", orderID, req.Customer.Email)

	sessionReq := payment.SessionRequest{
		Currency:      s.currency,
		LineItems:     lineItems(req.Cart, req.Shipping),
		SuccessURL:    fmt.Sprintf("%s?payment=success&order=%s", s.siteURL, orderID),
		CancelURL:     fmt.Sprintf("%s?payment=cancelled&order=%s", s.siteURL, orderID),
		CustomerEmail: req.Customer.Email,
		Metadata: map[string]string{
			"order_id":      orderID,
			"customer_name": req.Customer.FullName(),
			"local_pickup":  fmt.Sprintf("%t", localPickup),
		},
	}
	if !localPickup {
		sessionReq.CollectAddresses = true
		sessionReq.AllowedCountries = []string{shippingCountry}
	}

	if req.Discount != nil && req.Discount.Amount > 0 {
		couponID, err := s.payments.CreateCoupon(ctx, payment.CouponRequest{
			Name:      req.Discount.Name,
			AmountOff: toCents(req.Discount.Amount),
			Currency:  s.currency,
		})
		if err != nil {
			s.logger.Printf("Coupon creation for order %s failed, continuing without discount: %v", orderID, err)
		} else {
			sessionReq.CouponID = couponID
		}
	}

	session, err := s.payments.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		s.logger.Printf("Error creating checkout session for order %s: %v", orderID, err)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutSession, err)
	}

	return &models.CheckoutResult{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		OrderID:     orderID,
	}, nil
}
