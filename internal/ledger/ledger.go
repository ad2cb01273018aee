// Package ledger derives financial totals from line items. Every
// function is pure: no I/O, no clock, no ambient configuration.
// Callers run these inside the same transaction as the line-item
// mutation so stored totals never drift from their source rows.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/model"
)

// Round half-up at two decimal places. decimal.Round rounds half away
// from zero, which is half-up for the non-negative amounts handled
// here. Applied once per derived figure, never on re-read.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineTotal computes quantity × unitPrice rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return round(quantity.Mul(unitPrice))
}

type QuoteTotals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeQuote derives quote totals. Discount is applied before tax:
// tax = round((subtotal − discount) × rate).
func ComputeQuote(items []model.QuoteItem, discount, taxRate decimal.Decimal) QuoteTotals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it.Quantity, it.UnitPrice))
	}
	taxable := subtotal.Sub(discount)
	tax := round(taxable.Mul(taxRate))
	return QuoteTotals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     taxable.Add(tax),
	}
}

type JobRollup struct {
	ActualLaborCost decimal.Decimal
	ActualPartsCost decimal.Decimal
	ActualTotal     decimal.Decimal
}

// ComputeJob derives job actuals. Parts count toward the rollup only
// once installed.
func ComputeJob(labor []model.JobLabor, parts []model.JobPart) JobRollup {
	laborCost := decimal.Zero
	for _, l := range labor {
		laborCost = laborCost.Add(LineTotal(l.Hours, l.HourlyRate))
	}
	partsCost := decimal.Zero
	for _, p := range parts {
		if p.Status == model.PartStatusInstalled {
			partsCost = partsCost.Add(LineTotal(p.Quantity, p.UnitPrice))
		}
	}
	return JobRollup{
		ActualLaborCost: laborCost,
		ActualPartsCost: partsCost,
		ActualTotal:     laborCost.Add(partsCost),
	}
}

type InvoiceTotals struct {
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	BalanceDue decimal.Decimal
}

// ComputeInvoice derives invoice totals and the payment position.
// AmountPaid sums completed, non-refunded payments; refund adjustment
// rows carry negative amounts and reduce it.
func ComputeInvoice(items []model.InvoiceItem, payments []model.Payment, discount, taxRate decimal.Decimal) InvoiceTotals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(LineTotal(it.Quantity, it.UnitPrice))
	}
	taxable := subtotal.Sub(discount)
	tax := round(taxable.Mul(taxRate))
	total := taxable.Add(tax)

	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == model.PaymentStatusCompleted {
			paid = paid.Add(p.Amount)
		}
	}
	return InvoiceTotals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		Total:      total,
		AmountPaid: paid,
		BalanceDue: total.Sub(paid),
	}
}

// PaymentStatus derives the stored invoice status from the payment
// position. base is the status the invoice would hold with no
// payments (SENT or VIEWED).
func PaymentStatus(base model.InvoiceStatus, totals InvoiceTotals) model.InvoiceStatus {
	switch {
	case totals.Total.IsPositive() && totals.AmountPaid.GreaterThanOrEqual(totals.Total):
		return model.InvoiceStatusPaid
	case totals.AmountPaid.IsPositive():
		return model.InvoiceStatusPartial
	default:
		return base
	}
}
