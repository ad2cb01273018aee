package model

import "github.com/shopspring/decimal"

// BillingPolicy is an immutable snapshot of the shop's billing
// parameters. It is loaded once from configuration and passed into
// every computation so that recomputes stay deterministic.
type BillingPolicy struct {
	DefaultTaxRate decimal.Decimal
	// DefaultLaborRate is applied to labor entries recorded without an
	// explicit hourly rate.
	DefaultLaborRate       decimal.Decimal
	QuoteValidityDays      int
	InvoiceNetDays         int
	AllowOverpaymentCredit bool
	// AllowMultipleInvoices lets jobToInvoice create additional
	// invoices without the explicit additional flag.
	AllowMultipleInvoices bool
}
