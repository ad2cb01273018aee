package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the HTTP implementation of Ledger. Every call carries an
// idempotency key derived from (job, part, quantity) and is bounded
// by the configured timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type stockRequest struct {
	PartRef  string `json:"part_ref"`
	Quantity string `json:"quantity"`
}

func (c *Client) Consume(ctx context.Context, req ConsumeRequest) error {
	key := fmt.Sprintf("%s:%s:%s", req.JobID, req.PartID, req.Quantity)
	return c.post(ctx, "/stock/consume", key, stockRequest{
		PartRef:  req.PartRef,
		Quantity: req.Quantity.String(),
	})
}

func (c *Client) Restock(ctx context.Context, req RestockRequest) error {
	key := fmt.Sprintf("%s:%s:%s:restock", req.JobID, req.PartID, req.Quantity)
	return c.post(ctx, "/stock/restock", key, stockRequest{
		PartRef:  req.PartRef,
		Quantity: req.Quantity.String(),
	})
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload stockRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return ErrInsufficientStock
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}
