package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
)

var ErrInvalidSubmission = errors.New("submission body is not valid JSON")

// SubmitService forwards storefront form posts to the records store as-is.
type SubmitService struct {
	records RecordsClient
	logger  *log.Logger
}

func NewSubmitService(logger *log.Logger, records RecordsClient) *SubmitService {
	return &SubmitService{records: records, logger: logger}
}

func (s *SubmitService) SubmitOrder(ctx context.Context, body []byte) (string, error) {
	return s.submit(ctx, OrdersTable, body)
}

func (s *SubmitService) SubmitContact(ctx context.Context, body []byte) (string, error) {
	return s.submit(ctx, ContactsTable, body)
}

func (s *SubmitService) submit(ctx context.Context, table string, body []byte) (string, error) {
	if !json.Valid(body) {
		return "", ErrInvalidSubmission
	}
	id, err := s.records.CreateRaw(ctx, table, body)
	if err != nil {
		s.logger.Printf("Error submitting %s record: %v", table, err)
		return "", err
	}
	return id, nil
}
