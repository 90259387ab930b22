package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"
)

type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResult, error)
}

type CheckoutHandler struct {
	logger   *log.Logger
	checkout CheckoutCreator
}

func NewCheckoutHandler(logger *log.Logger, checkout CheckoutCreator) *CheckoutHandler {
	return &CheckoutHandler{
		logger:   logger,
		checkout: checkout,
	}
}

type CheckoutResponsePayload struct {
	Success     bool   `json:"success,omitempty"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Printf("Method not allowed for /v1/create-checkout: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, CheckoutResponsePayload{Error: "Invalid request body"})
		return
	}

	result, err := h.checkout.CreateCheckout(r.Context(), req)
	if err != nil {
		var statusCode int
		var message string

		switch {
		case errors.Is(err, service.ErrInvalidCart):
			statusCode = http.StatusBadRequest
			message = err.Error()
		case errors.Is(err, service.ErrOrderCreation):
			statusCode = http.StatusInternalServerError
			message = service.ErrOrderCreation.Error()
		case errors.Is(err, service.ErrCheckoutSession):
			statusCode = http.StatusInternalServerError
			message = service.ErrCheckoutSession.Error()
		default:
			statusCode = http.StatusInternalServerError
			message = "An unexpected error occurred during checkout"
		}

		writeJSON(w, h.logger, statusCode, CheckoutResponsePayload{Error: message})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, CheckoutResponsePayload{
		Success:     true,
		CheckoutURL: result.CheckoutURL,
		SessionID:   result.SessionID,
		OrderID:     result.OrderID,
	})
}

func writeJSON(w http.ResponseWriter, logger *log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("Error encoding response: %v", err)
	}
}
