package http

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/model"
)

type quoteResponse struct {
	ID               uuid.UUID           `json:"id"`
	Number           string              `json:"number"`
	CustomerID       uuid.UUID           `json:"customer_id"`
	ServiceRequestID *uuid.UUID          `json:"service_request_id,omitempty"`
	FamilyID         uuid.UUID           `json:"family_id"`
	Revision         int                 `json:"revision"`
	ParentQuoteID    *uuid.UUID          `json:"parent_quote_id,omitempty"`
	RowVersion       int                 `json:"row_version"`
	Status           model.QuoteStatus   `json:"status"`
	Items            []quoteItemResponse `json:"items"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	TaxRate          decimal.Decimal     `json:"tax_rate"`
	TaxAmount        decimal.Decimal     `json:"tax_amount"`
	DiscountAmount   decimal.Decimal     `json:"discount_amount"`
	Total            decimal.Decimal     `json:"total"`
	ValidUntil       *time.Time          `json:"valid_until,omitempty"`
	SentAt           *time.Time          `json:"sent_at,omitempty"`
	ViewedAt         *time.Time          `json:"viewed_at,omitempty"`
	RespondedAt      *time.Time          `json:"responded_at,omitempty"`
	ApprovedByName   *string             `json:"approved_by_name,omitempty"`
	DeclineReason    *string             `json:"decline_reason,omitempty"`
	ConvertedToJobID *uuid.UUID          `json:"converted_to_job_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type quoteItemResponse struct {
	ID           uuid.UUID           `json:"id"`
	Type         model.QuoteItemType `json:"type"`
	Description  string              `json:"description"`
	Quantity     decimal.Decimal     `json:"quantity"`
	UnitPrice    decimal.Decimal     `json:"unit_price"`
	TotalPrice   decimal.Decimal     `json:"total_price"`
	DisplayOrder int                 `json:"display_order"`
}

func toQuoteResponse(q *model.Quote) quoteResponse {
	items := make([]quoteItemResponse, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, quoteItemResponse{
			ID:           it.ID,
			Type:         it.Type,
			Description:  it.Description,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			DisplayOrder: it.DisplayOrder,
		})
	}
	return quoteResponse{
		ID:               q.ID,
		Number:           q.Number,
		CustomerID:       q.CustomerID,
		ServiceRequestID: q.ServiceRequestID,
		FamilyID:         q.FamilyID,
		Revision:         q.Revision,
		ParentQuoteID:    q.ParentQuoteID,
		RowVersion:       q.RowVersion,
		Status:           q.Status,
		Items:            items,
		Subtotal:         q.Subtotal,
		TaxRate:          q.TaxRate,
		TaxAmount:        q.TaxAmount,
		DiscountAmount:   q.DiscountAmount,
		Total:            q.Total,
		ValidUntil:       q.ValidUntil,
		SentAt:           q.SentAt,
		ViewedAt:         q.ViewedAt,
		RespondedAt:      q.RespondedAt,
		ApprovedByName:   q.ApprovedByName,
		DeclineReason:    q.DeclineReason,
		ConvertedToJobID: q.ConvertedToJobID,
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

type jobResponse struct {
	ID              uuid.UUID          `json:"id"`
	Number          string             `json:"number"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	QuoteID         *uuid.UUID         `json:"quote_id,omitempty"`
	RowVersion      int                `json:"row_version"`
	Status          model.JobStatus    `json:"status"`
	Tasks           []taskResponse     `json:"tasks"`
	Parts           []partResponse     `json:"parts"`
	Labor           []laborResponse    `json:"labor"`
	QuotedAmount    decimal.Decimal    `json:"quoted_amount"`
	ActualLaborCost decimal.Decimal    `json:"actual_labor_cost"`
	ActualPartsCost decimal.Decimal    `json:"actual_parts_cost"`
	ActualTotal     decimal.Decimal    `json:"actual_total"`
	ScheduledStart  *time.Time         `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time         `json:"scheduled_end,omitempty"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type taskResponse struct {
	ID              uuid.UUID        `json:"id"`
	Description     string           `json:"description"`
	Status          model.TaskStatus `json:"status"`
	EstimatedHours  decimal.Decimal  `json:"estimated_hours"`
	ActualHours     decimal.Decimal  `json:"actual_hours"`
	DependsOnTaskID *uuid.UUID       `json:"depends_on_task_id,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	DisplayOrder    int              `json:"display_order"`
}

type partResponse struct {
	ID          uuid.UUID        `json:"id"`
	TaskID      *uuid.UUID       `json:"task_id,omitempty"`
	PartRef     string           `json:"part_ref"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    decimal.Decimal  `json:"unit_cost"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TotalPrice  decimal.Decimal  `json:"total_price"`
	Status      model.PartStatus `json:"status"`
}

type laborResponse struct {
	ID            uuid.UUID       `json:"id"`
	TaskID        *uuid.UUID      `json:"task_id,omitempty"`
	EmployeeID    uuid.UUID       `json:"employee_id"`
	Description   string          `json:"description"`
	Hours         decimal.Decimal `json:"hours"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PerformedDate time.Time       `json:"performed_date"`
}

func toJobResponse(j *model.Job) jobResponse {
	tasks := make([]taskResponse, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		tasks = append(tasks, taskResponse{
			ID:              t.ID,
			Description:     t.Description,
			Status:          t.Status,
			EstimatedHours:  t.EstimatedHours,
			ActualHours:     t.ActualHours,
			DependsOnTaskID: t.DependsOnTaskID,
			CompletedAt:     t.CompletedAt,
			DisplayOrder:    t.DisplayOrder,
		})
	}
	parts := make([]partResponse, 0, len(j.Parts))
	for _, p := range j.Parts {
		parts = append(parts, partResponse{
			ID:          p.ID,
			TaskID:      p.TaskID,
			PartRef:     p.PartRef,
			Description: p.Description,
			Quantity:    p.Quantity,
			UnitCost:    p.UnitCost,
			UnitPrice:   p.UnitPrice,
			TotalPrice:  p.TotalPrice,
			Status:      p.Status,
		})
	}
	labor := make([]laborResponse, 0, len(j.Labor))
	for _, l := range j.Labor {
		labor = append(labor, laborResponse{
			ID:            l.ID,
			TaskID:        l.TaskID,
			EmployeeID:    l.EmployeeID,
			Description:   l.Description,
			Hours:         l.Hours,
			HourlyRate:    l.HourlyRate,
			TotalAmount:   l.TotalAmount,
			PerformedDate: l.PerformedDate,
		})
	}
	return jobResponse{
		ID:              j.ID,
		Number:          j.Number,
		CustomerID:      j.CustomerID,
		QuoteID:         j.QuoteID,
		RowVersion:      j.RowVersion,
		Status:          j.Status,
		Tasks:           tasks,
		Parts:           parts,
		Labor:           labor,
		QuotedAmount:    j.QuotedAmount,
		ActualLaborCost: j.ActualLaborCost,
		ActualPartsCost: j.ActualPartsCost,
		ActualTotal:     j.ActualTotal,
		ScheduledStart:  j.ScheduledStart,
		ScheduledEnd:    j.ScheduledEnd,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		DueDate:         j.DueDate,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

type invoiceResponse struct {
	ID             uuid.UUID             `json:"id"`
	Number         string                `json:"number"`
	CustomerID     uuid.UUID             `json:"customer_id"`
	JobID          *uuid.UUID            `json:"job_id,omitempty"`
	RowVersion     int                   `json:"row_version"`
	Status         model.InvoiceStatus   `json:"status"`
	Items          []invoiceItemResponse `json:"items"`
	Payments       []paymentResponse     `json:"payments"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	TaxRate        decimal.Decimal       `json:"tax_rate"`
	TaxAmount      decimal.Decimal       `json:"tax_amount"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	Total          decimal.Decimal       `json:"total"`
	AmountPaid     decimal.Decimal       `json:"amount_paid"`
	BalanceDue     decimal.Decimal       `json:"balance_due"`
	InvoiceDate    time.Time             `json:"invoice_date"`
	DueDate        time.Time             `json:"due_date"`
	SentAt         *time.Time            `json:"sent_at,omitempty"`
	ViewedAt       *time.Time            `json:"viewed_at,omitempty"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	VoidedAt       *time.Time            `json:"voided_at,omitempty"`
	VoidReason     *string               `json:"void_reason,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

type invoiceItemResponse struct {
	ID           uuid.UUID             `json:"id"`
	Type         model.InvoiceItemType `json:"type"`
	Description  string                `json:"description"`
	Quantity     decimal.Decimal       `json:"quantity"`
	UnitPrice    decimal.Decimal       `json:"unit_price"`
	TotalPrice   decimal.Decimal       `json:"total_price"`
	JobPartID    *uuid.UUID            `json:"job_part_id,omitempty"`
	JobLaborID   *uuid.UUID            `json:"job_labor_id,omitempty"`
	DisplayOrder int                   `json:"display_order"`
}

type paymentResponse struct {
	ID        uuid.UUID           `json:"id"`
	Amount    decimal.Decimal     `json:"amount"`
	Method    string              `json:"method"`
	Status    model.PaymentStatus `json:"status"`
	RefundOf  *uuid.UUID          `json:"refund_of,omitempty"`
	Reference *string             `json:"reference,omitempty"`
	Date      time.Time           `json:"date"`
}

func toInvoiceResponse(inv *model.Invoice) invoiceResponse {
	items := make([]invoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, invoiceItemResponse{
			ID:           it.ID,
			Type:         it.Type,
			Description:  it.Description,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
			JobPartID:    it.JobPartID,
			JobLaborID:   it.JobLaborID,
			DisplayOrder: it.DisplayOrder,
		})
	}
	payments := make([]paymentResponse, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		payments = append(payments, paymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Status:    p.Status,
			RefundOf:  p.RefundOf,
			Reference: p.Reference,
			Date:      p.Date,
		})
	}
	return invoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		CustomerID:     inv.CustomerID,
		JobID:          inv.JobID,
		RowVersion:     inv.RowVersion,
		Status:         inv.DisplayStatus(time.Now()),
		Items:          items,
		Payments:       payments,
		Subtotal:       inv.Subtotal,
		TaxRate:        inv.TaxRate,
		TaxAmount:      inv.TaxAmount,
		DiscountAmount: inv.DiscountAmount,
		Total:          inv.Total,
		AmountPaid:     inv.AmountPaid,
		BalanceDue:     inv.BalanceDue,
		InvoiceDate:    inv.InvoiceDate,
		DueDate:        inv.DueDate,
		SentAt:         inv.SentAt,
		ViewedAt:       inv.ViewedAt,
		PaidAt:         inv.PaidAt,
		VoidedAt:       inv.VoidedAt,
		VoidReason:     inv.VoidReason,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

type historyResponse struct {
	Status         string     `json:"status"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	ChangedBy      *uuid.UUID `json:"changed_by,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	ChangedAt      time.Time  `json:"changed_at"`
}

func toHistoryResponse(changes []model.StatusChange) []historyResponse {
	out := make([]historyResponse, 0, len(changes))
	for _, ch := range changes {
		out = append(out, historyResponse{
			Status:         ch.Status,
			PreviousStatus: ch.PreviousStatus,
			ChangedBy:      ch.ChangedBy,
			Notes:          ch.Notes,
			ChangedAt:      ch.ChangedAt,
		})
	}
	return out
}

type listMeta struct {
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}
