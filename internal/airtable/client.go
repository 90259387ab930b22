package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront/internal/config"
)

// maxPages bounds pagination in case the upstream keeps returning an offset.
const maxPages = 100

type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("records api returned HTTP %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	httpClient *http.Client
}

func NewClient(cfg config.RecordsConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		httpClient: httpClient,
	}
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

// List returns every record of the table matching query, following offsets
// until the upstream reports no further pages. Any failing page fails the
// whole listing.
func (c *Client) List(ctx context.Context, table string, query url.Values) ([]Record, error) {
	var all []Record
	offset := ""

	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		endpoint := c.tableURL(table)
		if encoded := q.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list %s (page %d): %w", table, page+1, err)
		}
		all = append(all, resp.Records...)

		if resp.Offset == "" {
			return all, nil
		}
		offset = resp.Offset
	}

	return nil, fmt.Errorf("failed to list %s: more than %d pages", table, maxPages)
}

// Create inserts a record built from fields and returns its upstream id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s record: %w", table, err)
	}
	return c.CreateRaw(ctx, table, body)
}

// CreateRaw forwards a caller-supplied JSON document unchanged.
func (c *Client) CreateRaw(ctx context.Context, table string, body []byte) (string, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return "", fmt.Errorf("failed to create %s record: %w", table, err)
	}
	return rec.ID, nil
}

// Update overwrites the given fields of one record.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("failed to marshal %s update: %w", table, err)
	}
	endpoint := c.tableURL(table) + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("failed to update %s record %s: %w", table, id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
