package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"storefront/internal/service"
)

type Submitter interface {
	SubmitOrder(ctx context.Context, body []byte) (string, error)
	SubmitContact(ctx context.Context, body []byte) (string, error)
}

type submitFunc func(ctx context.Context, body []byte) (string, error)

// SubmitHandler forwards a form post to the records store. idField names
// the id key in the response ("orderId" or "contactId").
type SubmitHandler struct {
	logger  *log.Logger
	submit  submitFunc
	idField string
	noun    string
}

func NewSubmitOrderHandler(logger *log.Logger, svc Submitter) *SubmitHandler {
	return &SubmitHandler{logger: logger, submit: svc.SubmitOrder, idField: "orderId", noun: "Order"}
}

func NewSubmitContactHandler(logger *log.Logger, svc Submitter) *SubmitHandler {
	return &SubmitHandler{logger: logger, submit: svc.SubmitContact, idField: "contactId", noun: "Contact"}
}

func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	id, err := h.submit(r.Context(), body)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubmission) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		h.logger.Printf("Error submitting %s: %v", h.noun, err)
		http.Error(w, "Failed to submit "+strings.ToLower(h.noun), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"success": true,
		h.idField: id,
		"message": h.noun + " submitted successfully",
	})
}
