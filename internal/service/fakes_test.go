package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/inventory"
	"github.com/adilzhm/shopworks-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// In-memory stores mirroring the repository contracts, including the
// optimistic row version checks.

type memNumbers struct {
	mu  sync.Mutex
	seq map[model.EntityType]int64
}

func newMemNumbers() *memNumbers {
	return &memNumbers{seq: map[model.EntityType]int64{}}
}

func (m *memNumbers) Next(_ context.Context, entity model.EntityType) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[entity]++
	return model.FormatNumber(entity, 2026, m.seq[entity]), nil
}

type memQuoteStore struct {
	quotes  map[uuid.UUID]*model.Quote
	history map[uuid.UUID][]model.StatusChange
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{
		quotes:  map[uuid.UUID]*model.Quote{},
		history: map[uuid.UUID][]model.StatusChange{},
	}
}

func cloneQuote(q *model.Quote) *model.Quote {
	c := *q
	c.Items = append([]model.QuoteItem(nil), q.Items...)
	return &c
}

func (s *memQuoteStore) Get(_ context.Context, id uuid.UUID) (*model.Quote, error) {
	q, ok := s.quotes[id]
	if !ok {
		return nil, fmt.Errorf("%w: quote", ErrNotFound)
	}
	return cloneQuote(q), nil
}

func (s *memQuoteStore) List(_ context.Context, filter QuoteFilter) ([]model.Quote, int64, error) {
	var out []model.Quote
	for _, q := range s.quotes {
		if filter.CustomerID != nil && q.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		if filter.FamilyID != nil && q.FamilyID != *filter.FamilyID {
			continue
		}
		out = append(out, *cloneQuote(q))
	}
	return out, int64(len(out)), nil
}

func (s *memQuoteStore) Create(_ context.Context, q *model.Quote) error {
	s.quotes[q.ID] = cloneQuote(q)
	s.history[q.ID] = append(s.history[q.ID], model.StatusChange{
		EntityID: q.ID,
		Status:   string(q.Status),
	})
	return nil
}

func (s *memQuoteStore) Update(_ context.Context, q *model.Quote, change *model.StatusChange) error {
	stored, ok := s.quotes[q.ID]
	if !ok {
		return fmt.Errorf("%w: quote", ErrNotFound)
	}
	if stored.RowVersion != q.RowVersion {
		return fmt.Errorf("%w: quote %s", ErrVersionConflict, q.ID)
	}
	next := cloneQuote(q)
	next.RowVersion++
	s.quotes[q.ID] = next
	q.RowVersion++
	if change != nil {
		s.history[q.ID] = append(s.history[q.ID], *change)
	}
	return nil
}

func (s *memQuoteStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.quotes[id]; !ok {
		return fmt.Errorf("%w: quote", ErrNotFound)
	}
	delete(s.quotes, id)
	return nil
}

func (s *memQuoteStore) Revise(_ context.Context, old *model.Quote, next *model.Quote, changedBy *uuid.UUID) error {
	stored, ok := s.quotes[old.ID]
	if !ok {
		return fmt.Errorf("%w: quote", ErrNotFound)
	}
	if stored.RowVersion != old.RowVersion {
		return fmt.Errorf("%w: quote %s", ErrVersionConflict, old.ID)
	}
	revised := cloneQuote(old)
	revised.Status = model.QuoteStatusRevised
	revised.RowVersion++
	s.quotes[old.ID] = revised
	s.quotes[next.ID] = cloneQuote(next)
	s.history[old.ID] = append(s.history[old.ID], model.StatusChange{
		EntityID:  old.ID,
		Status:    string(model.QuoteStatusRevised),
		ChangedBy: changedBy,
	})
	return nil
}

func (s *memQuoteStore) ListPendingFollowUp(_ context.Context, cutoff time.Time) ([]model.Quote, error) {
	var out []model.Quote
	for _, q := range s.quotes {
		if q.Status != model.QuoteStatusSent && q.Status != model.QuoteStatusViewed {
			continue
		}
		if q.SentAt == nil || !q.SentAt.Before(cutoff) {
			continue
		}
		out = append(out, *cloneQuote(q))
	}
	return out, nil
}

func (s *memQuoteStore) History(_ context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.history[id], nil
}

type memJobStore struct {
	jobs    map[uuid.UUID]*model.Job
	history map[uuid.UUID][]model.StatusChange
	// quotes is consulted by CreateFromQuote to stamp the source row
	// the way the real transaction does.
	quotes *memQuoteStore

	failUpdate error
}

func newMemJobStore() *memJobStore {
	return &memJobStore{
		jobs:    map[uuid.UUID]*model.Job{},
		history: map[uuid.UUID][]model.StatusChange{},
	}
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	c.Tasks = append([]model.JobTask(nil), j.Tasks...)
	c.Parts = append([]model.JobPart(nil), j.Parts...)
	c.Labor = append([]model.JobLabor(nil), j.Labor...)
	return &c
}

func (s *memJobStore) Get(_ context.Context, id uuid.UUID) (*model.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job", ErrNotFound)
	}
	return cloneJob(j), nil
}

func (s *memJobStore) List(_ context.Context, filter JobFilter) ([]model.Job, int64, error) {
	now := time.Now()
	var out []model.Job
	for _, j := range s.jobs {
		if filter.CustomerID != nil && j.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.OverdueOnly && !j.Overdue(now) {
			continue
		}
		out = append(out, *cloneJob(j))
	}
	return out, int64(len(out)), nil
}

func (s *memJobStore) Create(_ context.Context, j *model.Job, note *string) error {
	s.jobs[j.ID] = cloneJob(j)
	s.history[j.ID] = append(s.history[j.ID], model.StatusChange{
		EntityID: j.ID,
		Status:   string(j.Status),
		Notes:    note,
	})
	return nil
}

func (s *memJobStore) Update(_ context.Context, j *model.Job, change *model.StatusChange) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	stored, ok := s.jobs[j.ID]
	if !ok {
		return fmt.Errorf("%w: job", ErrNotFound)
	}
	if stored.RowVersion != j.RowVersion {
		return fmt.Errorf("%w: job %s", ErrVersionConflict, j.ID)
	}
	next := cloneJob(j)
	next.RowVersion++
	s.jobs[j.ID] = next
	j.RowVersion++
	if change != nil {
		s.history[j.ID] = append(s.history[j.ID], *change)
	}
	return nil
}

func (s *memJobStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: job", ErrNotFound)
	}
	delete(s.jobs, id)
	return nil
}

func (s *memJobStore) CreateFromQuote(_ context.Context, j *model.Job, quote *model.Quote, changedBy *uuid.UUID) error {
	stored, ok := s.quotes.quotes[quote.ID]
	if !ok {
		return fmt.Errorf("%w: quote", ErrNotFound)
	}
	if stored.RowVersion != quote.RowVersion || stored.ConvertedToJobID != nil {
		return fmt.Errorf("%w: quote %s", ErrVersionConflict, quote.ID)
	}

	s.jobs[j.ID] = cloneJob(j)
	s.history[j.ID] = append(s.history[j.ID], model.StatusChange{
		EntityID:  j.ID,
		Status:    string(j.Status),
		ChangedBy: changedBy,
	})

	stamped := cloneQuote(stored)
	stamped.Status = model.QuoteStatusConverted
	jobID := j.ID
	stamped.ConvertedToJobID = &jobID
	stamped.RowVersion++
	s.quotes.quotes[quote.ID] = stamped
	s.quotes.history[quote.ID] = append(s.quotes.history[quote.ID], model.StatusChange{
		EntityID:  quote.ID,
		Status:    string(model.QuoteStatusConverted),
		ChangedBy: changedBy,
	})

	quote.RowVersion++
	quote.Status = model.QuoteStatusConverted
	quote.ConvertedToJobID = &jobID
	return nil
}

func (s *memJobStore) History(_ context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.history[id], nil
}

type memInvoiceStore struct {
	invoices map[uuid.UUID]*model.Invoice
	history  map[uuid.UUID][]model.StatusChange
}

func newMemInvoiceStore() *memInvoiceStore {
	return &memInvoiceStore{
		invoices: map[uuid.UUID]*model.Invoice{},
		history:  map[uuid.UUID][]model.StatusChange{},
	}
}

func cloneInvoice(inv *model.Invoice) *model.Invoice {
	c := *inv
	c.Items = append([]model.InvoiceItem(nil), inv.Items...)
	c.Payments = append([]model.Payment(nil), inv.Payments...)
	return &c
}

func (s *memInvoiceStore) Get(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice", ErrNotFound)
	}
	return cloneInvoice(inv), nil
}

func (s *memInvoiceStore) List(_ context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	now := time.Now()
	var out []model.Invoice
	for _, inv := range s.invoices {
		if filter.CustomerID != nil && inv.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.JobID != nil && (inv.JobID == nil || *inv.JobID != *filter.JobID) {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.OverdueOnly && !inv.Overdue(now) {
			continue
		}
		out = append(out, *cloneInvoice(inv))
	}
	return out, int64(len(out)), nil
}

func (s *memInvoiceStore) Create(_ context.Context, inv *model.Invoice) error {
	s.invoices[inv.ID] = cloneInvoice(inv)
	s.history[inv.ID] = append(s.history[inv.ID], model.StatusChange{
		EntityID: inv.ID,
		Status:   string(inv.Status),
	})
	return nil
}

func (s *memInvoiceStore) Update(_ context.Context, inv *model.Invoice, change *model.StatusChange) error {
	stored, ok := s.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("%w: invoice", ErrNotFound)
	}
	if stored.RowVersion != inv.RowVersion {
		return fmt.Errorf("%w: invoice %s", ErrVersionConflict, inv.ID)
	}
	next := cloneInvoice(inv)
	next.RowVersion++
	s.invoices[inv.ID] = next
	inv.RowVersion++
	if change != nil {
		s.history[inv.ID] = append(s.history[inv.ID], *change)
	}
	return nil
}

func (s *memInvoiceStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.invoices[id]; !ok {
		return fmt.Errorf("%w: invoice", ErrNotFound)
	}
	delete(s.invoices, id)
	return nil
}

func (s *memInvoiceStore) ListOpenByJob(_ context.Context, jobID uuid.UUID) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range s.invoices {
		if inv.JobID == nil || *inv.JobID != jobID || inv.Status == model.InvoiceStatusVoid {
			continue
		}
		out = append(out, *cloneInvoice(inv))
	}
	return out, nil
}

func (s *memInvoiceStore) Revenue(_ context.Context, from, to time.Time) (RevenueSummary, error) {
	summary := RevenueSummary{
		Invoiced:  decimal.Zero,
		Collected: decimal.Zero,
		Open:      decimal.Zero,
	}
	for _, inv := range s.invoices {
		if inv.Status == model.InvoiceStatusDraft || inv.Status == model.InvoiceStatusVoid {
			continue
		}
		if inv.InvoiceDate.Before(from) || inv.InvoiceDate.After(to) {
			continue
		}
		summary.Invoiced = summary.Invoiced.Add(inv.Total)
		summary.Collected = summary.Collected.Add(inv.AmountPaid)
		summary.Open = summary.Open.Add(inv.BalanceDue)
		summary.Count++
	}
	return summary, nil
}

func (s *memInvoiceStore) History(_ context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.history[id], nil
}

// fakeStock records ledger calls and fails on demand.
type fakeStock struct {
	consumed   []inventory.ConsumeRequest
	restocked  []inventory.RestockRequest
	consumeErr error
	restockErr error
}

func (f *fakeStock) Consume(_ context.Context, req inventory.ConsumeRequest) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = append(f.consumed, req)
	return nil
}

func (f *fakeStock) Restock(_ context.Context, req inventory.RestockRequest) error {
	if f.restockErr != nil {
		return f.restockErr
	}
	f.restocked = append(f.restocked, req)
	return nil
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(event string, _ map[string]any) {
	n.events = append(n.events, event)
}

func manager() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.RoleManager}
}

func admin() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
}

func technician() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.RoleTechnician}
}

func customer() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.RoleCustomer}
}

func testPolicy() model.BillingPolicy {
	return model.BillingPolicy{
		DefaultTaxRate:    dec("0.08"),
		DefaultLaborRate:  dec("85"),
		QuoteValidityDays: 30,
		InvoiceNetDays:    14,
	}
}
