package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/adilzhm/shopworks-billing/internal/model"
)

// NumberIssuer hands out human-readable business numbers. The
// increment must be a single atomic operation in the backing store;
// when it fails the entity is not created.
type NumberIssuer interface {
	Next(ctx context.Context, entity model.EntityType) (string, error)
}

// Page is the uniform list shape: filters plus offset pagination.
type Page struct {
	Offset   int
	Limit    int
	SortDesc bool
}

func (p Page) Clamp() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type QuoteFilter struct {
	CustomerID *uuid.UUID
	Status     *model.QuoteStatus
	FamilyID   *uuid.UUID
	Page       Page
}

// QuoteStore persists quote aggregates. Create and Update write the
// quote row, its items and a status history entry inside one
// transaction; Update is conditional on RowVersion and returns
// ErrVersionConflict on a lost race.
type QuoteStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	List(ctx context.Context, filter QuoteFilter) ([]model.Quote, int64, error)
	Create(ctx context.Context, q *model.Quote) error
	Update(ctx context.Context, q *model.Quote, change *model.StatusChange) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Revise marks the old row revised and inserts the new draft in
	// one transaction, conditional on the old row's version.
	Revise(ctx context.Context, old *model.Quote, next *model.Quote, changedBy *uuid.UUID) error
	// ListPendingFollowUp returns every sent or viewed quote whose
	// sent_at is before the cutoff, with no page cap.
	ListPendingFollowUp(ctx context.Context, cutoff time.Time) ([]model.Quote, error)
	History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error)
}

type JobFilter struct {
	CustomerID  *uuid.UUID
	Status      *model.JobStatus
	OverdueOnly bool
	Page        Page
}

type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter JobFilter) ([]model.Job, int64, error)
	Create(ctx context.Context, j *model.Job, note *string) error
	Update(ctx context.Context, j *model.Job, change *model.StatusChange) error
	Delete(ctx context.Context, id uuid.UUID) error
	// CreateFromQuote inserts the job aggregate and stamps the quote
	// row (status CONVERTED, converted_to_job_id) in one transaction,
	// conditional on the quote's version. No orphan job survives a
	// failed marker update.
	CreateFromQuote(ctx context.Context, j *model.Job, quote *model.Quote, changedBy *uuid.UUID) error
	History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error)
}

type InvoiceFilter struct {
	CustomerID  *uuid.UUID
	JobID       *uuid.UUID
	Status      *model.InvoiceStatus
	OverdueOnly bool
	Page        Page
}

type InvoiceStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	Create(ctx context.Context, inv *model.Invoice) error
	Update(ctx context.Context, inv *model.Invoice, change *model.StatusChange) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListOpenByJob returns non-void invoices linked to the job.
	ListOpenByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error)
	// Revenue aggregates non-draft, non-void invoices dated inside
	// [from, to] in the store, not in memory.
	Revenue(ctx context.Context, from, to time.Time) (RevenueSummary, error)
	History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error)
}
