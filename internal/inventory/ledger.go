// Package inventory talks to the external inventory ledger that
// tracks physical part stock. Consumption and restock calls are
// synchronous; callers abort their own mutation when a call fails.
package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnavailable       = errors.New("inventory ledger unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ConsumeRequest is keyed by (JobID, PartID, Quantity) so the ledger
// can deduplicate at-least-once retries.
type ConsumeRequest struct {
	JobID    uuid.UUID
	PartID   uuid.UUID
	PartRef  string
	Quantity decimal.Decimal
}

type RestockRequest struct {
	JobID    uuid.UUID
	PartID   uuid.UUID
	PartRef  string
	Quantity decimal.Decimal
}

type Ledger interface {
	Consume(ctx context.Context, req ConsumeRequest) error
	Restock(ctx context.Context, req RestockRequest) error
}

// Nop is used when no inventory service is configured; every call
// succeeds without tracking anything.
type Nop struct{}

func (Nop) Consume(ctx context.Context, req ConsumeRequest) error { return nil }
func (Nop) Restock(ctx context.Context, req RestockRequest) error { return nil }
