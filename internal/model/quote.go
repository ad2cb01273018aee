package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusViewed    QuoteStatus = "VIEWED"
	QuoteStatusAccepted  QuoteStatus = "ACCEPTED"
	QuoteStatusDeclined  QuoteStatus = "DECLINED"
	QuoteStatusExpired   QuoteStatus = "EXPIRED"
	QuoteStatusRevised   QuoteStatus = "REVISED"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft:    {QuoteStatusSent},
	QuoteStatusSent:     {QuoteStatusViewed, QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired, QuoteStatusRevised},
	QuoteStatusViewed:   {QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired, QuoteStatusRevised},
	QuoteStatusDeclined: {QuoteStatusRevised},
	QuoteStatusAccepted: {QuoteStatusConverted},
}

func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	for _, allowed := range quoteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s QuoteStatus) Terminal() bool {
	return len(quoteTransitions[s]) == 0
}

type QuoteItemType string

const (
	QuoteItemLabor   QuoteItemType = "LABOR"
	QuoteItemParts   QuoteItemType = "PARTS"
	QuoteItemService QuoteItemType = "SERVICE"
	QuoteItemOther   QuoteItemType = "OTHER"
)

func ParseQuoteItemType(raw string) (QuoteItemType, bool) {
	switch QuoteItemType(raw) {
	case QuoteItemLabor, QuoteItemParts, QuoteItemService, QuoteItemOther:
		return QuoteItemType(raw), true
	default:
		return "", false
	}
}

type Quote struct {
	ID               uuid.UUID
	Number           string
	CustomerID       uuid.UUID
	ServiceRequestID *uuid.UUID
	FamilyID         uuid.UUID
	Revision         int
	ParentQuoteID    *uuid.UUID
	RowVersion       int
	Status           QuoteStatus
	Items            []QuoteItem `gorm:"-"`
	Subtotal         decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
	DiscountAmount   decimal.Decimal
	Total            decimal.Decimal
	ValidUntil       *time.Time
	SentAt           *time.Time
	ViewedAt         *time.Time
	RespondedAt      *time.Time
	ApprovedByName   *string
	DeclineReason    *string
	ConvertedToJobID *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the quote can no longer be responded to.
func (q *Quote) Expired(now time.Time) bool {
	if q.ValidUntil == nil {
		return false
	}
	return now.After(*q.ValidUntil)
}

func (q *Quote) Editable() bool {
	return q.Status == QuoteStatusDraft && q.ConvertedToJobID == nil
}

type QuoteItem struct {
	ID           uuid.UUID
	QuoteID      uuid.UUID
	Type         QuoteItemType
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	DisplayOrder int
}
