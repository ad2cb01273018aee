package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/ledger"
	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

type InvoiceService struct {
	store    InvoiceStore
	jobs     JobStore
	numbers  NumberIssuer
	notifier notify.Notifier
	policy   model.BillingPolicy
	log      zerolog.Logger
	now      func() time.Time
}

func NewInvoiceService(store InvoiceStore, jobs JobStore, numbers NumberIssuer, notifier notify.Notifier, policy model.BillingPolicy, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		store:    store,
		jobs:     jobs,
		numbers:  numbers,
		notifier: notifier,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

type InvoiceItemInput struct {
	Type        model.InvoiceItemType
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type CreateInvoiceInput struct {
	CustomerID     uuid.UUID
	Items          []InvoiceItemInput
	DiscountAmount decimal.Decimal
	TaxRate        *decimal.Decimal
	DueDate        *time.Time
	By             model.Principal
}

// CreateStandalone opens an invoice not backed by a job.
func (s *InvoiceService) CreateStandalone(ctx context.Context, input CreateInvoiceInput) (*model.Invoice, error) {
	if !input.By.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: an invoice needs at least one item", ErrInvalidInput)
	}
	items, err := buildInvoiceItems(input.Items)
	if err != nil {
		return nil, err
	}
	if input.DiscountAmount.IsNegative() {
		return nil, fmt.Errorf("%w: discount_amount cannot be negative", ErrInvalidInput)
	}

	inv, err := s.newInvoice(ctx, input.CustomerID, nil, input.TaxRate, input.DueDate)
	if err != nil {
		return nil, err
	}
	inv.DiscountAmount = input.DiscountAmount
	inv.Items = items
	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
	}
	s.recompute(inv)

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify.EventInvoiceCreated, map[string]any{"invoice_id": inv.ID.String(), "number": inv.Number})
	return inv, nil
}

type CreateFromJobInput struct {
	JobID uuid.UUID
	// Additional permits a further invoice for a job that already has
	// an open one (progress billing).
	Additional bool
	TaxRate    *decimal.Decimal
	DueDate    *time.Time
	By         model.Principal
}

// CreateFromJob copies the job's billable labor and installed parts
// into invoice items at their recorded values.
func (s *InvoiceService) CreateFromJob(ctx context.Context, input CreateFromJobInput) (*model.Invoice, error) {
	if !input.By.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	job, err := s.jobs.Get(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	if job.ActualTotal.IsZero() {
		return nil, fmt.Errorf("%w: job %s has no billable cost", ErrNothingBillable, job.Number)
	}

	open, err := s.store.ListOpenByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 && !input.Additional && !s.policy.AllowMultipleInvoices {
		return nil, fmt.Errorf("%w: job %s", ErrAlreadyInvoiced, job.Number)
	}

	inv, err := s.newInvoice(ctx, job.CustomerID, &job.ID, input.TaxRate, input.DueDate)
	if err != nil {
		return nil, err
	}

	order := 0
	for _, l := range job.Labor {
		laborID := l.ID
		desc := l.Description
		if desc == "" {
			desc = fmt.Sprintf("Labor (%s hours)", l.Hours)
		}
		inv.Items = append(inv.Items, model.InvoiceItem{
			ID:           uuid.New(),
			InvoiceID:    inv.ID,
			Type:         model.InvoiceItemLabor,
			Description:  desc,
			Quantity:     l.Hours,
			UnitPrice:    l.HourlyRate,
			TotalPrice:   l.TotalAmount,
			JobLaborID:   &laborID,
			DisplayOrder: order,
		})
		order++
	}
	for _, p := range job.Parts {
		if p.Status != model.PartStatusInstalled {
			continue
		}
		partID := p.ID
		inv.Items = append(inv.Items, model.InvoiceItem{
			ID:           uuid.New(),
			InvoiceID:    inv.ID,
			Type:         model.InvoiceItemParts,
			Description:  p.Description,
			Quantity:     p.Quantity,
			UnitPrice:    p.UnitPrice,
			TotalPrice:   p.TotalPrice,
			JobPartID:    &partID,
			DisplayOrder: order,
		})
		order++
	}
	s.recompute(inv)

	// Soft policy check: adjustments are legitimate, so an excess is
	// logged for review rather than rejected.
	billed := inv.Total
	for _, o := range open {
		billed = billed.Add(o.Total)
	}
	if billed.GreaterThan(job.ActualTotal) {
		s.log.Warn().
			Str("job", job.Number).
			Str("billed", billed.String()).
			Str("actual_total", job.ActualTotal.String()).
			Msg("invoices exceed job actual total")
	}

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify.EventInvoiceCreated, map[string]any{
		"invoice_id": inv.ID.String(),
		"number":     inv.Number,
		"job_id":     job.ID.String(),
	})
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return s.store.Get(ctx, id)
}

func (s *InvoiceService) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	filter.Page = filter.Page.Clamp()
	return s.store.List(ctx, filter)
}

func (s *InvoiceService) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.store.History(ctx, id)
}

func (s *InvoiceService) AddItem(ctx context.Context, invoiceID uuid.UUID, input InvoiceItemInput, by model.Principal) (*model.Invoice, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.editableInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	items, err := buildInvoiceItems([]InvoiceItemInput{input})
	if err != nil {
		return nil, err
	}
	item := items[0]
	item.InvoiceID = inv.ID
	item.DisplayOrder = len(inv.Items)
	inv.Items = append(inv.Items, item)
	s.recompute(inv)

	if err := s.store.Update(ctx, inv, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) RemoveItem(ctx context.Context, invoiceID, itemID uuid.UUID, by model.Principal) (*model.Invoice, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.editableInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	kept := inv.Items[:0]
	found := false
	for _, it := range inv.Items {
		if it.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return nil, fmt.Errorf("%w: invoice item", ErrNotFound)
	}
	inv.Items = kept
	s.recompute(inv)

	if err := s.store.Update(ctx, inv, nil); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID, by model.Principal) (*model.Invoice, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(model.InvoiceStatusSent) {
		return nil, fmt.Errorf("%w: invoice %s cannot be sent", ErrInvalidTransition, inv.Status)
	}
	if len(inv.Items) == 0 {
		return nil, fmt.Errorf("%w: cannot send an empty invoice", ErrInvalidInput)
	}

	now := s.now()
	prev := inv.Status
	inv.Status = model.InvoiceStatusSent
	inv.SentAt = &now

	if err := s.store.Update(ctx, inv, s.change(inv.ID, prev, inv.Status, &by.UserID, nil)); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify.EventInvoiceSent, map[string]any{"invoice_id": inv.ID.String(), "number": inv.Number})
	return inv, nil
}

// MarkViewed is idempotent: an invoice already viewed stays viewed.
func (s *InvoiceService) MarkViewed(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == model.InvoiceStatusViewed {
		return inv, nil
	}
	if !inv.Status.CanTransitionTo(model.InvoiceStatusViewed) {
		return nil, fmt.Errorf("%w: invoice %s cannot be marked viewed", ErrInvalidTransition, inv.Status)
	}

	now := s.now()
	prev := inv.Status
	inv.Status = model.InvoiceStatusViewed
	inv.ViewedAt = &now

	if err := s.store.Update(ctx, inv, s.change(inv.ID, prev, inv.Status, nil, nil)); err != nil {
		return nil, err
	}
	return inv, nil
}

type RecordPaymentInput struct {
	Amount    decimal.Decimal
	Method    string
	Reference *string
	By        model.Principal
}

func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID uuid.UUID, input RecordPaymentInput) (*model.Invoice, error) {
	inv, err := s.store.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	if input.Method == "" {
		return nil, fmt.Errorf("%w: payment method is required", ErrInvalidInput)
	}
	switch inv.Status {
	case model.InvoiceStatusDraft, model.InvoiceStatusVoid, model.InvoiceStatusPaid:
		return nil, fmt.Errorf("%w: invoice %s cannot take payments", ErrInvalidTransition, inv.Status)
	}
	if inv.AmountPaid.Add(input.Amount).GreaterThan(inv.Total) && !s.policy.AllowOverpaymentCredit {
		return nil, fmt.Errorf("%w: payment exceeds balance due %s", ErrInvalidInput, inv.BalanceDue)
	}

	now := s.now()
	inv.Payments = append(inv.Payments, model.Payment{
		ID:        uuid.New(),
		InvoiceID: inv.ID,
		Amount:    input.Amount,
		Method:    input.Method,
		Status:    model.PaymentStatusCompleted,
		Reference: input.Reference,
		Date:      now,
	})

	prev := inv.Status
	s.recompute(inv)
	s.settle(inv, prev)

	var change *model.StatusChange
	if inv.Status != prev {
		change = s.change(inv.ID, prev, inv.Status, &input.By.UserID, nil)
	}
	if err := s.store.Update(ctx, inv, change); err != nil {
		return nil, err
	}
	if inv.Status == model.InvoiceStatusPaid {
		s.notifier.Notify(notify.EventInvoicePaid, map[string]any{"invoice_id": inv.ID.String(), "number": inv.Number})
	}
	return inv, nil
}

type RefundPaymentInput struct {
	PaymentID uuid.UUID
	// Amount is optional; empty means a full refund of the payment.
	Amount *decimal.Decimal
	By     model.Principal
}

// RefundPayment reverses a completed payment. A full refund flips the
// payment to REFUNDED; a partial refund records a negative adjustment
// row linked to the original. Cumulative partial refunds never exceed
// the payment; once they consume it the payment and its adjustments
// are retired together.
func (s *InvoiceService) RefundPayment(ctx context.Context, invoiceID uuid.UUID, input RefundPaymentInput) (*model.Invoice, error) {
	if !input.By.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.store.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case model.InvoiceStatusDraft, model.InvoiceStatusVoid:
		return nil, fmt.Errorf("%w: invoice %s cannot refund payments", ErrInvalidTransition, inv.Status)
	}

	var payment *model.Payment
	for i := range inv.Payments {
		if inv.Payments[i].ID == input.PaymentID {
			payment = &inv.Payments[i]
			break
		}
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: payment", ErrNotFound)
	}
	if payment.Status != model.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: only completed payments can be refunded", ErrInvalidTransition)
	}

	refunded := decimal.Zero
	for _, p := range inv.Payments {
		if p.RefundOf != nil && *p.RefundOf == payment.ID && p.Status == model.PaymentStatusCompleted {
			refunded = refunded.Add(p.Amount.Neg())
		}
	}
	remaining := payment.Amount.Sub(refunded)

	amount := remaining
	if input.Amount != nil {
		amount = *input.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: refund amount must be positive and at most the un-refunded %s", ErrInvalidInput, remaining)
	}

	switch {
	case amount.Equal(remaining) && refunded.IsZero():
		payment.Status = model.PaymentStatusRefunded
	case amount.Equal(remaining):
		// The last slice consumes the payment. Retire it together
		// with its adjustment rows so the position nets to zero
		// without double counting.
		payment.Status = model.PaymentStatusRefunded
		for i := range inv.Payments {
			if inv.Payments[i].RefundOf != nil && *inv.Payments[i].RefundOf == payment.ID {
				inv.Payments[i].Status = model.PaymentStatusRefunded
			}
		}
	default:
		originalID := payment.ID
		inv.Payments = append(inv.Payments, model.Payment{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Amount:    amount.Neg(),
			Method:    payment.Method,
			Status:    model.PaymentStatusCompleted,
			RefundOf:  &originalID,
			Date:      s.now(),
		})
	}

	prev := inv.Status
	s.recompute(inv)
	s.settle(inv, prev)

	var change *model.StatusChange
	if inv.Status != prev {
		change = s.change(inv.ID, prev, inv.Status, &input.By.UserID, nil)
	}
	if err := s.store.Update(ctx, inv, change); err != nil {
		return nil, err
	}
	return inv, nil
}

// Void closes an invoice permanently without deleting its history.
// Legal from any non-paid state.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID, reason string, by model.Principal) (*model.Invoice, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(model.InvoiceStatusVoid) {
		return nil, fmt.Errorf("%w: invoice %s cannot be voided", ErrInvalidTransition, inv.Status)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", ErrInvalidInput)
	}

	now := s.now()
	prev := inv.Status
	inv.Status = model.InvoiceStatusVoid
	inv.VoidedAt = &now
	inv.VoidReason = &reason

	if err := s.store.Update(ctx, inv, s.change(inv.ID, prev, inv.Status, &by.UserID, &reason)); err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete removes a draft invoice. An invoice with any completed
// payment cannot be deleted, only voided.
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID, by model.Principal) error {
	if !by.CanManageBilling() {
		return ErrPermissionDenied
	}
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range inv.Payments {
		if p.Status == model.PaymentStatusCompleted {
			return fmt.Errorf("%w: invoices with payments can only be voided", ErrInvalidInput)
		}
	}
	if !inv.Editable() {
		return fmt.Errorf("%w: only draft invoices can be deleted", ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}

func (s *InvoiceService) ListOverdue(ctx context.Context) ([]model.Invoice, error) {
	invoices, _, err := s.store.List(ctx, InvoiceFilter{OverdueOnly: true, Page: Page{Limit: 100}})
	return invoices, err
}

// RevenueSummary aggregates invoiced and collected amounts over a
// date range.
type RevenueSummary struct {
	Invoiced  decimal.Decimal
	Collected decimal.Decimal
	Open      decimal.Decimal
	Count     int
}

func (s *InvoiceService) Revenue(ctx context.Context, from, to time.Time) (RevenueSummary, error) {
	if to.Before(from) {
		return RevenueSummary{}, fmt.Errorf("%w: range end before start", ErrInvalidInput)
	}
	return s.store.Revenue(ctx, from, to)
}

func (s *InvoiceService) newInvoice(ctx context.Context, customerID uuid.UUID, jobID *uuid.UUID, taxRate *decimal.Decimal, dueDate *time.Time) (*model.Invoice, error) {
	number, err := s.numbers.Next(ctx, model.EntityInvoice)
	if err != nil {
		return nil, err
	}

	rate := s.policy.DefaultTaxRate
	if taxRate != nil {
		if taxRate.IsNegative() {
			return nil, fmt.Errorf("%w: tax_rate cannot be negative", ErrInvalidInput)
		}
		rate = *taxRate
	}
	now := s.now()
	due := now.AddDate(0, 0, s.policy.InvoiceNetDays)
	if dueDate != nil {
		due = *dueDate
	}

	return &model.Invoice{
		ID:          uuid.New(),
		Number:      number,
		CustomerID:  customerID,
		JobID:       jobID,
		Status:      model.InvoiceStatusDraft,
		TaxRate:     rate,
		InvoiceDate: now,
		DueDate:     due,
	}, nil
}

func (s *InvoiceService) editableInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Editable() {
		return nil, fmt.Errorf("%w: invoice %s is not editable", ErrInvalidTransition, inv.Status)
	}
	return inv, nil
}

func (s *InvoiceService) recompute(inv *model.Invoice) {
	for i := range inv.Items {
		inv.Items[i].TotalPrice = ledger.LineTotal(inv.Items[i].Quantity, inv.Items[i].UnitPrice)
	}
	totals := ledger.ComputeInvoice(inv.Items, inv.Payments, inv.DiscountAmount, inv.TaxRate)
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
	inv.AmountPaid = totals.AmountPaid
	inv.BalanceDue = totals.BalanceDue
}

// settle re-derives the payment-driven status after AmountPaid moves.
// It only moves along edges the transition table allows, so terminal
// states stay put.
func (s *InvoiceService) settle(inv *model.Invoice, prev model.InvoiceStatus) {
	base := model.InvoiceStatusSent
	if prev == model.InvoiceStatusViewed {
		base = model.InvoiceStatusViewed
	}
	next := ledger.PaymentStatus(base, ledger.InvoiceTotals{
		Total:      inv.Total,
		AmountPaid: inv.AmountPaid,
		BalanceDue: inv.BalanceDue,
	})
	if next == prev || !prev.CanTransitionTo(next) {
		return
	}
	inv.Status = next
	if next == model.InvoiceStatusPaid {
		now := s.now()
		inv.PaidAt = &now
	} else {
		inv.PaidAt = nil
	}
}

func (s *InvoiceService) change(entityID uuid.UUID, prev, next model.InvoiceStatus, by *uuid.UUID, notes *string) *model.StatusChange {
	return &model.StatusChange{
		ID:             uuid.New(),
		EntityID:       entityID,
		Status:         string(next),
		PreviousStatus: string(prev),
		ChangedBy:      by,
		Notes:          notes,
		ChangedAt:      s.now(),
	}
}

func buildInvoiceItems(inputs []InvoiceItemInput) ([]model.InvoiceItem, error) {
	items := make([]model.InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		if _, ok := model.ParseInvoiceItemType(string(in.Type)); !ok {
			return nil, fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, in.Type)
		}
		if in.Description == "" {
			return nil, fmt.Errorf("%w: item description is required", ErrInvalidInput)
		}
		if !in.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item unit price cannot be negative", ErrInvalidInput)
		}
		items = append(items, model.InvoiceItem{
			ID:           uuid.New(),
			Type:         in.Type,
			Description:  in.Description,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			TotalPrice:   ledger.LineTotal(in.Quantity, in.UnitPrice),
			DisplayOrder: i,
		})
	}
	return items, nil
}
