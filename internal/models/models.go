package models

import (
	"encoding/json"
	"strings"
	"time"
)

// AssetRef ties a remote attachment to the catalog record that owns it.
type AssetRef struct {
	OwnerKey  string
	Filename  string
	RemoteURL string
}

type Product struct {
	ID          string   `json:"id"`
	SKU         *string  `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Image       string   `json:"image"`
	MadeByMe    bool     `json:"madeByMe"`
	Colors      []string `json:"colors"`
	Sizes       []string `json:"sizes"`
	Tags        []string `json:"tags"`
	Pinned      bool     `json:"pinned"`
}

type Event struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Location     string   `json:"location,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	StartTime    string   `json:"startTime,omitempty"`
	EndTime      string   `json:"endTime,omitempty"`
	EventType    string   `json:"eventType,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Description  string   `json:"description"`
	Website      string   `json:"website,omitempty"`
	Status       string   `json:"status"`
	Featured     bool     `json:"featured"`
	Images       []string `json:"images"`
	SpecialItems string   `json:"specialItems"`
	Notes        string   `json:"notes"`
}

type Deal struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	MinAmount     float64 `json:"minAmount"`
	DiscountValue float64 `json:"discountValue"`
	DiscountType  string  `json:"discountType"`
	Active        bool    `json:"active"`
}

// CacheEntry is one collection's serialized response.
type CacheEntry struct {
	Key       string    `json:"key"`
	Body      []byte    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderStatusPendingPayment = "Pending Payment"
	OrderStatusPaid           = "Paid"

	AddressLocalPickup     = "LOCAL PICKUP"
	AddressPendingCheckout = "Pending (via Stripe checkout)"
	AddressNotCaptured     = "Shipping address not captured - check Stripe dashboard"
)

type Order struct {
	ID           string  `json:"id,omitempty"`
	CustomerName string  `json:"customer_name"`
	Email        string  `json:"email"`
	Address      string  `json:"address"`
	Items        string  `json:"items"`
	Total        float64 `json:"total"`
	Status       string  `json:"status"`
	Notes        string  `json:"notes"`
}

// Fields maps the order onto the records store column names.
func (o Order) Fields() map[string]any {
	return map[string]any{
		"Customer Name": o.CustomerName,
		"Email":         o.Email,
		"Address":       o.Address,
		"Items":         o.Items,
		"Total":         o.Total,
		"Notes":         o.Notes,
		"Status":        o.Status,
	}
}

type CartItem struct {
	SKU           string  `json:"sku,omitempty"`
	Name          string  `json:"name"`
	Qty           int64   `json:"qty"`
	Price         float64 `json:"price"`
	SelectedColor string  `json:"selectedColor,omitempty"`
	SelectedSize  string  `json:"selectedSize,omitempty"`
}

// Flag decodes both JSON booleans and the strings "true"/"false".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = false
		return nil
	}
	*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

type Customer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Notes       string `json:"notes,omitempty"`
	LocalPickup Flag   `json:"localPickup"`
}

func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Discount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal,omitempty"`
	Shipping float64 `json:"shipping,omitempty"`
	Discount float64 `json:"discount,omitempty"`
	Total    float64 `json:"total"`
}

type CheckoutRequest struct {
	Cart     []CartItem `json:"cart"`
	Customer Customer   `json:"customer"`
	Shipping float64    `json:"shipping"`
	Discount *Discount  `json:"discount,omitempty"`
	Totals   Totals     `json:"totals"`
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
	OrderID     string `json:"orderId"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type SessionParty struct {
	Name    string   `json:"name"`
	Address *Address `json:"address"`
}

const PaymentStatusPaid = "paid"

// CheckoutSession carries the processor fields this service reads. Tags
// match the processor's wire format so webhook payloads decode directly.
type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	ShippingDetails *SessionParty     `json:"shipping_details"`
	CustomerDetails *SessionParty     `json:"customer_details"`
}

const EventCheckoutSessionCompleted = "checkout.session.completed"

type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookDelivery is the audit row written for every verified notification.
type WebhookDelivery struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error"`
	ReceivedAt time.Time `json:"received_at"`
}

type OrderPaidEvent struct {
	Event       string    `json:"event"`
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	Address     string    `json:"address"`
	LocalPickup bool      `json:"local_pickup"`
	PaidAt      time.Time `json:"paid_at"`
}
