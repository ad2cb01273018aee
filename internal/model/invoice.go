package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusViewed  InvoiceStatus = "VIEWED"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"

	// InvoiceStatusOverdue is derived at read time from due_date and
	// balance_due; it is never stored.
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusVoid},
	InvoiceStatusSent:    {InvoiceStatusViewed, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
	InvoiceStatusViewed:  {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
	InvoiceStatusPartial: {InvoiceStatusPaid, InvoiceStatusSent, InvoiceStatusVoid},
	// Refunds can reopen a paid invoice.
	InvoiceStatusPaid: {InvoiceStatusPartial, InvoiceStatusSent},
}

func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s InvoiceStatus) Terminal() bool {
	return len(invoiceTransitions[s]) == 0
}

type Invoice struct {
	ID             uuid.UUID
	Number         string
	CustomerID     uuid.UUID
	JobID          *uuid.UUID
	Status         InvoiceStatus
	Items          []InvoiceItem `gorm:"-"`
	Payments       []Payment     `gorm:"-"`
	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	BalanceDue     decimal.Decimal
	InvoiceDate    time.Time
	DueDate        time.Time
	SentAt         *time.Time
	ViewedAt       *time.Time
	PaidAt         *time.Time
	VoidedAt       *time.Time
	VoidReason     *string
	ReminderCount  int
	RowVersion     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (i *Invoice) Editable() bool {
	return i.Status == InvoiceStatusDraft
}

func (i *Invoice) Overdue(now time.Time) bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusVoid, InvoiceStatusDraft:
		return false
	}
	return now.After(i.DueDate) && i.BalanceDue.IsPositive()
}

// DisplayStatus folds the derived overdue state into the stored status.
func (i *Invoice) DisplayStatus(now time.Time) InvoiceStatus {
	if i.Overdue(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

type InvoiceItemType string

const (
	InvoiceItemLabor   InvoiceItemType = "LABOR"
	InvoiceItemParts   InvoiceItemType = "PARTS"
	InvoiceItemService InvoiceItemType = "SERVICE"
	InvoiceItemOther   InvoiceItemType = "OTHER"
)

func ParseInvoiceItemType(raw string) (InvoiceItemType, bool) {
	switch InvoiceItemType(raw) {
	case InvoiceItemLabor, InvoiceItemParts, InvoiceItemService, InvoiceItemOther:
		return InvoiceItemType(raw), true
	default:
		return "", false
	}
}

type InvoiceItem struct {
	ID           uuid.UUID
	InvoiceID    uuid.UUID
	Type         InvoiceItemType
	Description  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TotalPrice   decimal.Decimal
	JobPartID    *uuid.UUID
	JobLaborID   *uuid.UUID
	DisplayOrder int
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Status    PaymentStatus
	// RefundOf links a negative adjustment row to the payment it
	// partially refunds.
	RefundOf  *uuid.UUID
	Reference *string
	Date      time.Time
	CreatedAt time.Time
}
