package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"storefront/internal/payment"
	"storefront/internal/service"
)

// maxWebhookBody caps the payload read before signature verification.
const maxWebhookBody = 1 << 20

type NotificationHandler interface {
	HandleNotification(ctx context.Context, payload []byte, signature string) error
}

type WebhookHandler struct {
	logger   *log.Logger
	webhooks NotificationHandler
}

func NewWebhookHandler(logger *log.Logger, webhooks NotificationHandler) *WebhookHandler {
	return &WebhookHandler{
		logger:   logger,
		webhooks: webhooks,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	err = h.webhooks.HandleNotification(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrMissingSignature), errors.Is(err, service.ErrWebhookNotConfigured):
			http.Error(w, "Webhook signature missing", http.StatusBadRequest)
		case errors.Is(err, payment.ErrTimestampExpired):
			http.Error(w, "Webhook timestamp expired", http.StatusBadRequest)
		case errors.Is(err, payment.ErrMalformedSignature), errors.Is(err, payment.ErrSignatureMismatch):
			http.Error(w, "Invalid signature", http.StatusBadRequest)
		case errors.Is(err, service.ErrMalformedEvent):
			http.Error(w, "Invalid payload", http.StatusBadRequest)
		default:
			h.logger.Printf("Webhook error: %v", err)
			http.Error(w, "Webhook error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"received": true})
}
