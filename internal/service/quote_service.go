package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/ledger"
	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

type QuoteService struct {
	store    QuoteStore
	numbers  NumberIssuer
	notifier notify.Notifier
	policy   model.BillingPolicy
	now      func() time.Time
}

func NewQuoteService(store QuoteStore, numbers NumberIssuer, notifier notify.Notifier, policy model.BillingPolicy) *QuoteService {
	return &QuoteService{
		store:    store,
		numbers:  numbers,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

type QuoteItemInput struct {
	Type        model.QuoteItemType
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type CreateQuoteInput struct {
	CustomerID       uuid.UUID
	ServiceRequestID *uuid.UUID
	Items            []QuoteItemInput
	DiscountAmount   decimal.Decimal
	TaxRate          *decimal.Decimal
	ValidUntil       *time.Time
	By               model.Principal
}

func (s *QuoteService) Create(ctx context.Context, input CreateQuoteInput) (*model.Quote, error) {
	if !input.By.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: a quote needs at least one item", ErrInvalidInput)
	}
	items, err := buildQuoteItems(input.Items)
	if err != nil {
		return nil, err
	}
	if input.DiscountAmount.IsNegative() {
		return nil, fmt.Errorf("%w: discount_amount cannot be negative", ErrInvalidInput)
	}

	taxRate := s.policy.DefaultTaxRate
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() {
			return nil, fmt.Errorf("%w: tax_rate cannot be negative", ErrInvalidInput)
		}
		taxRate = *input.TaxRate
	}

	number, err := s.numbers.Next(ctx, model.EntityQuote)
	if err != nil {
		return nil, err
	}

	validUntil := input.ValidUntil
	if validUntil == nil {
		v := s.now().AddDate(0, 0, s.policy.QuoteValidityDays)
		validUntil = &v
	}

	quote := &model.Quote{
		ID:               uuid.New(),
		Number:           number,
		CustomerID:       input.CustomerID,
		ServiceRequestID: input.ServiceRequestID,
		FamilyID:         uuid.New(),
		Revision:         1,
		Status:           model.QuoteStatusDraft,
		Items:            items,
		TaxRate:          taxRate,
		DiscountAmount:   input.DiscountAmount,
		ValidUntil:       validUntil,
	}
	for i := range quote.Items {
		quote.Items[i].QuoteID = quote.ID
	}
	s.recompute(quote)

	if err := s.store.Create(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) Get(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	return s.store.Get(ctx, id)
}

func (s *QuoteService) List(ctx context.Context, filter QuoteFilter) ([]model.Quote, int64, error) {
	filter.Page = filter.Page.Clamp()
	return s.store.List(ctx, filter)
}

func (s *QuoteService) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.store.History(ctx, id)
}

func (s *QuoteService) AddItem(ctx context.Context, quoteID uuid.UUID, input QuoteItemInput, by model.Principal) (*model.Quote, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.editableQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	items, err := buildQuoteItems([]QuoteItemInput{input})
	if err != nil {
		return nil, err
	}
	item := items[0]
	item.QuoteID = quote.ID
	item.DisplayOrder = len(quote.Items)
	quote.Items = append(quote.Items, item)
	s.recompute(quote)

	if err := s.store.Update(ctx, quote, nil); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) UpdateItem(ctx context.Context, quoteID, itemID uuid.UUID, input QuoteItemInput, by model.Principal) (*model.Quote, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.editableQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	items, err := buildQuoteItems([]QuoteItemInput{input})
	if err != nil {
		return nil, err
	}
	found := false
	for i := range quote.Items {
		if quote.Items[i].ID == itemID {
			quote.Items[i].Type = items[0].Type
			quote.Items[i].Description = items[0].Description
			quote.Items[i].Quantity = items[0].Quantity
			quote.Items[i].UnitPrice = items[0].UnitPrice
			quote.Items[i].TotalPrice = ledger.LineTotal(items[0].Quantity, items[0].UnitPrice)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: quote item", ErrNotFound)
	}
	s.recompute(quote)

	if err := s.store.Update(ctx, quote, nil); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) RemoveItem(ctx context.Context, quoteID, itemID uuid.UUID, by model.Principal) (*model.Quote, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.editableQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	kept := quote.Items[:0]
	found := false
	for _, it := range quote.Items {
		if it.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return nil, fmt.Errorf("%w: quote item", ErrNotFound)
	}
	quote.Items = kept
	s.recompute(quote)

	if err := s.store.Update(ctx, quote, nil); err != nil {
		return nil, err
	}
	return quote, nil
}

// Send freezes the quote and hands it to the customer.
func (s *QuoteService) Send(ctx context.Context, id uuid.UUID, by model.Principal) (*model.Quote, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.Status.CanTransitionTo(model.QuoteStatusSent) {
		return nil, fmt.Errorf("%w: quote %s cannot be sent", ErrInvalidTransition, quote.Status)
	}
	if len(quote.Items) == 0 {
		return nil, fmt.Errorf("%w: cannot send an empty quote", ErrInvalidInput)
	}

	now := s.now()
	prev := quote.Status
	quote.Status = model.QuoteStatusSent
	quote.SentAt = &now

	if err := s.store.Update(ctx, quote, s.change(quote.ID, prev, quote.Status, &by.UserID, nil)); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify.EventQuoteSent, map[string]any{"quote_id": quote.ID.String(), "number": quote.Number})
	return quote, nil
}

// MarkViewed records the customer opening the quote. Idempotent: a
// quote already viewed stays viewed.
func (s *QuoteService) MarkViewed(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status == model.QuoteStatusViewed {
		return quote, nil
	}
	if !quote.Status.CanTransitionTo(model.QuoteStatusViewed) {
		return nil, fmt.Errorf("%w: quote %s cannot be marked viewed", ErrInvalidTransition, quote.Status)
	}

	now := s.now()
	prev := quote.Status
	quote.Status = model.QuoteStatusViewed
	quote.ViewedAt = &now

	if err := s.store.Update(ctx, quote, s.change(quote.ID, prev, quote.Status, nil, nil)); err != nil {
		return nil, err
	}
	return quote, nil
}

type RespondQuoteInput struct {
	Accepted       bool
	ApprovedByName *string
	DeclineReason  *string
}

// Respond records the customer decision. An expired quote transitions
// to EXPIRED first and the call fails with ErrExpired.
func (s *QuoteService) Respond(ctx context.Context, id uuid.UUID, input RespondQuoteInput) (*model.Quote, error) {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if quote.Expired(now) && quote.Status.CanTransitionTo(model.QuoteStatusExpired) {
		prev := quote.Status
		quote.Status = model.QuoteStatusExpired
		if err := s.store.Update(ctx, quote, s.change(quote.ID, prev, quote.Status, nil, nil)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: quote %s", ErrExpired, quote.Number)
	}

	next := model.QuoteStatusDeclined
	if input.Accepted {
		next = model.QuoteStatusAccepted
	}
	if !quote.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: quote %s cannot move to %s", ErrInvalidTransition, quote.Status, next)
	}

	prev := quote.Status
	quote.Status = next
	quote.RespondedAt = &now
	if input.Accepted {
		quote.ApprovedByName = input.ApprovedByName
	} else {
		quote.DeclineReason = input.DeclineReason
	}

	if err := s.store.Update(ctx, quote, s.change(quote.ID, prev, quote.Status, nil, input.DeclineReason)); err != nil {
		return nil, err
	}

	event := notify.EventQuoteDeclined
	if input.Accepted {
		event = notify.EventQuoteAccepted
	}
	s.notifier.Notify(event, map[string]any{"quote_id": quote.ID.String(), "number": quote.Number})
	return quote, nil
}

// Revise creates the next draft in the quote's revision chain and
// closes the old row. Legal only from SENT, VIEWED or DECLINED.
func (s *QuoteService) Revise(ctx context.Context, id uuid.UUID, by model.Principal) (*model.Quote, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	old, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !old.Status.CanTransitionTo(model.QuoteStatusRevised) {
		return nil, fmt.Errorf("%w: quote %s cannot be revised", ErrInvalidTransition, old.Status)
	}

	number, err := s.numbers.Next(ctx, model.EntityQuote)
	if err != nil {
		return nil, err
	}

	validUntil := s.now().AddDate(0, 0, s.policy.QuoteValidityDays)
	parentID := old.ID
	next := &model.Quote{
		ID:             uuid.New(),
		Number:         number,
		CustomerID:     old.CustomerID,
		FamilyID:       old.FamilyID,
		Revision:       old.Revision + 1,
		ParentQuoteID:  &parentID,
		Status:         model.QuoteStatusDraft,
		TaxRate:        old.TaxRate,
		DiscountAmount: old.DiscountAmount,
		ValidUntil:     &validUntil,
	}
	for _, it := range old.Items {
		next.Items = append(next.Items, model.QuoteItem{
			ID:           uuid.New(),
			QuoteID:      next.ID,
			Type:         it.Type,
			Description:  it.Description,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			DisplayOrder: it.DisplayOrder,
		})
	}
	s.recompute(next)

	old.Status = model.QuoteStatusRevised
	if err := s.store.Revise(ctx, old, next, &by.UserID); err != nil {
		return nil, err
	}
	return next, nil
}

// ConvertMarker stamps the quote with the job it became. Calling
// twice with the same job is a no-op; a different job fails with
// ErrAlreadyConverted.
func (s *QuoteService) ConvertMarker(ctx context.Context, id, jobID uuid.UUID) error {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if quote.ConvertedToJobID != nil {
		if *quote.ConvertedToJobID == jobID {
			return nil
		}
		return fmt.Errorf("%w: quote %s is linked to another job", ErrAlreadyConverted, quote.Number)
	}
	if !quote.Status.CanTransitionTo(model.QuoteStatusConverted) {
		return fmt.Errorf("%w: quote %s cannot be converted", ErrInvalidTransition, quote.Status)
	}

	prev := quote.Status
	quote.Status = model.QuoteStatusConverted
	quote.ConvertedToJobID = &jobID
	return s.store.Update(ctx, quote, s.change(quote.ID, prev, quote.Status, nil, nil))
}

func (s *QuoteService) Delete(ctx context.Context, id uuid.UUID, by model.Principal) error {
	if !by.CanManageBilling() {
		return ErrPermissionDenied
	}
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !quote.Editable() {
		return fmt.Errorf("%w: only unsent quotes can be deleted", ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}

// ListPendingFollowUp returns sent or viewed quotes older than the
// given age, for follow-up reminders.
func (s *QuoteService) ListPendingFollowUp(ctx context.Context, daysOld int) ([]model.Quote, error) {
	if daysOld < 0 {
		return nil, fmt.Errorf("%w: days_old cannot be negative", ErrInvalidInput)
	}
	cutoff := s.now().AddDate(0, 0, -daysOld)
	return s.store.ListPendingFollowUp(ctx, cutoff)
}

func (s *QuoteService) editableQuote(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	quote, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.Editable() {
		return nil, fmt.Errorf("%w: quote %s is not editable", ErrInvalidTransition, quote.Status)
	}
	return quote, nil
}

func (s *QuoteService) recompute(q *model.Quote) {
	for i := range q.Items {
		q.Items[i].TotalPrice = ledger.LineTotal(q.Items[i].Quantity, q.Items[i].UnitPrice)
	}
	totals := ledger.ComputeQuote(q.Items, q.DiscountAmount, q.TaxRate)
	q.Subtotal = totals.Subtotal
	q.TaxAmount = totals.TaxAmount
	q.Total = totals.Total
}

func (s *QuoteService) change(entityID uuid.UUID, prev, next model.QuoteStatus, by *uuid.UUID, notes *string) *model.StatusChange {
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

func buildQuoteItems(inputs []QuoteItemInput) ([]model.QuoteItem, error) {
	items := make([]model.QuoteItem, 0, len(inputs))
	for i, in := range inputs {
		if _, ok := model.ParseQuoteItemType(string(in.Type)); !ok {
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
		items = append(items, model.QuoteItem{
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
