package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/payment"
)

var (
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrMalformedEvent       = errors.New("malformed webhook event")
)

const (
	outcomePaid         = "paid"
	outcomeIgnored      = "ignored"
	outcomeUpdateFailed = "update_failed"

	eventOrderPaid = "order.paid"
)

// OrderUpdater applies the paid transition to an order.
type OrderUpdater interface {
	MarkPaid(ctx context.Context, orderID, address string) error
}

type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id string) (*models.CheckoutSession, error)
}

type DeliveryRecorder interface {
	Record(ctx context.Context, d *models.WebhookDelivery) error
	CountForOrder(ctx context.Context, orderID string) (int, error)
}

type EventPublisher interface {
	PublishOrderPaid(ctx context.Context, evt models.OrderPaidEvent) error
}

// RecordsOrderUpdater patches orders held in the records store.
type RecordsOrderUpdater struct {
	records RecordsClient
}

func NewRecordsOrderUpdater(records RecordsClient) *RecordsOrderUpdater {
	return &RecordsOrderUpdater{records: records}
}

func (u *RecordsOrderUpdater) MarkPaid(ctx context.Context, orderID, address string) error {
	return u.records.Update(ctx, OrdersTable, orderID, map[string]any{
		"Status":  models.OrderStatusPaid,
		"Address": address,
	})
}

type WebhookService struct {
	secret     string
	tolerance  time.Duration
	sessions   SessionFetcher
	orders     OrderUpdater
	deliveries DeliveryRecorder
	publisher  EventPublisher
	now        func() time.Time
	logger     *log.Logger
}

// NewWebhookService builds the finalizer. deliveries and publisher may be
// nil.
func NewWebhookService(logger *log.Logger, secret string, sessions SessionFetcher, orders OrderUpdater, deliveries DeliveryRecorder, publisher EventPublisher) *WebhookService {
	return &WebhookService{
		secret:     secret,
		tolerance:  payment.DefaultTolerance,
		sessions:   sessions,
		orders:     orders,
		deliveries: deliveries,
		publisher:  publisher,
		now:        time.Now,
		logger:     logger,
	}
}

// DeriveAddress picks the address written on a paid order: shipping details
// first, then the billing contact, then a marker asking for manual review.
func DeriveAddress(session *models.CheckoutSession, localPickup bool) string {
	if localPickup {
		return models.AddressLocalPickup
	}

	party := session.ShippingDetails
	if party == nil || party.Address == nil || party.Address.Line1 == "" {
		party = session.CustomerDetails
	}
	if party == nil || party.Address == nil || party.Address.Line1 == "" {
		return models.AddressNotCaptured
	}

	a := party.Address
	lines := []string{
		party.Name,
		a.Line1,
		a.Line2,
		fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode),
		a.Country,
	}
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

// HandleNotification verifies and applies one processor notification. Only
// verification and parsing failures are returned; anything after that is
// logged so the processor sees the delivery as received.
func (s *WebhookService) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	if s.secret == "" {
		return ErrWebhookNotConfigured
	}
	if err := payment.VerifySignature(payload, signature, s.secret, s.now(), s.tolerance); err != nil {
		s.logger.Printf("Webhook rejected: %v", err)
		return err
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	s.logger.Printf("Webhook event %s received: %s", event.ID, event.Type)

	delivery := &models.WebhookDelivery{
		EventID:   event.ID,
		EventType: event.Type,
		Outcome:   outcomeIgnored,
	}
	defer s.record(ctx, delivery)

	if event.Type != models.EventCheckoutSessionCompleted {
		return nil
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	orderID := session.Metadata["order_id"]
	delivery.OrderID = orderID
	if orderID == "" || session.PaymentStatus != models.PaymentStatusPaid {
		return nil
	}
	localPickup := session.Metadata["local_pickup"] == "true"

	s.logRedelivery(ctx, orderID)

	full := &session
	if fetched, err := s.sessions.GetCheckoutSession(ctx, session.ID); err != nil {
		s.logger.Printf("Failed to fetch session %s, using webhook payload: %v", session.ID, err)
	} else if fetched != nil {
		full = fetched
	}

	address := DeriveAddress(full, localPickup)
	if err := s.orders.MarkPaid(ctx, orderID, address); err != nil {
		s.logger.Printf("Failed to mark order %s as paid: %v", orderID, err)
		delivery.Outcome = outcomeUpdateFailed
		delivery.Error = err.Error()
		return nil
	}
	delivery.Outcome = outcomePaid
	s.logger.Printf("Order %s marked as paid", orderID)

	if s.publisher != nil {
		evt := models.OrderPaidEvent{
			Event:       eventOrderPaid,
			OrderID:     orderID,
			SessionID:   session.ID,
			Address:     address,
			LocalPickup: localPickup,
			PaidAt:      s.now().UTC(),
		}
		if err := s.publisher.PublishOrderPaid(ctx, evt); err != nil {
			s.logger.Printf("Failed to publish %s for order %s: %v", eventOrderPaid, orderID, err)
		}
	}
	return nil
}

func (s *WebhookService) logRedelivery(ctx context.Context, orderID string) {
	if s.deliveries == nil {
		return
	}
	n, err := s.deliveries.CountForOrder(ctx, orderID)
	if err != nil {
		s.logger.Printf("Failed to count deliveries for order %s: %v", orderID, err)
		return
	}
	if n > 0 {
		s.logger.Printf("Order %s already has %d recorded deliveries, applying again", orderID, n)
	}
}

func (s *WebhookService) record(ctx context.Context, d *models.WebhookDelivery) {
	if s.deliveries == nil {
		return
	}
	if err := s.deliveries.Record(ctx, d); err != nil {
		s.logger.Printf("Failed to record webhook delivery %s: %v", d.EventID, err)
	}
}
