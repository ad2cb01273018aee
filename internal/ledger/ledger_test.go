package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilzhm/shopworks-billing/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineTotal(t *testing.T) {
	assert.True(t, dec("200").Equal(LineTotal(dec("2"), dec("100"))))
	// 3 × 33.335 = 100.005 rounds half-up to 100.01
	assert.True(t, dec("100.01").Equal(LineTotal(dec("3"), dec("33.335"))))
}

func TestComputeQuote(t *testing.T) {
	items := []model.QuoteItem{
		{Type: model.QuoteItemParts, Quantity: dec("2"), UnitPrice: dec("100")},
	}
	totals := ComputeQuote(items, decimal.Zero, dec("0.08"))

	assert.True(t, dec("200").Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
	assert.True(t, dec("16").Equal(totals.TaxAmount), "tax %s", totals.TaxAmount)
	assert.True(t, dec("216").Equal(totals.Total), "total %s", totals.Total)
}

func TestComputeQuoteDiscountBeforeTax(t *testing.T) {
	items := []model.QuoteItem{
		{Quantity: dec("1"), UnitPrice: dec("100")},
	}
	totals := ComputeQuote(items, dec("20"), dec("0.10"))

	// tax on 80, not 100
	assert.True(t, dec("8").Equal(totals.TaxAmount))
	assert.True(t, dec("88").Equal(totals.Total))
}

func TestComputeQuoteRoundsTaxHalfUp(t *testing.T) {
	items := []model.QuoteItem{
		{Quantity: dec("1"), UnitPrice: dec("10.10")},
	}
	// 10.10 * 0.075 = 0.7575, rounds to 0.76
	totals := ComputeQuote(items, decimal.Zero, dec("0.075"))
	assert.True(t, dec("0.76").Equal(totals.TaxAmount), "tax %s", totals.TaxAmount)
	assert.True(t, dec("10.86").Equal(totals.Total))
}

func TestComputeQuoteInvariant(t *testing.T) {
	items := []model.QuoteItem{
		{Quantity: dec("3"), UnitPrice: dec("19.99")},
		{Quantity: dec("1.5"), UnitPrice: dec("85")},
	}
	discount := dec("5")
	totals := ComputeQuote(items, discount, dec("0.0825"))

	require.True(t, totals.Total.Equal(totals.Subtotal.Sub(discount).Add(totals.TaxAmount)))
}

func TestComputeJob(t *testing.T) {
	labor := []model.JobLabor{
		{Hours: dec("3"), HourlyRate: dec("85")},
	}
	parts := []model.JobPart{
		{Quantity: dec("1"), UnitPrice: dec("150"), Status: model.PartStatusInstalled},
		{Quantity: dec("4"), UnitPrice: dec("25"), Status: model.PartStatusOrdered},
	}
	rollup := ComputeJob(labor, parts)

	assert.True(t, dec("255").Equal(rollup.ActualLaborCost))
	assert.True(t, dec("150").Equal(rollup.ActualPartsCost), "ordered parts must not count")
	assert.True(t, dec("405").Equal(rollup.ActualTotal))
}

func TestComputeJobReturnedPartDropsOut(t *testing.T) {
	parts := []model.JobPart{
		{Quantity: dec("1"), UnitPrice: dec("150"), Status: model.PartStatusReturned},
	}
	rollup := ComputeJob(nil, parts)
	assert.True(t, rollup.ActualPartsCost.IsZero())
	assert.True(t, rollup.ActualTotal.IsZero())
}

func TestComputeInvoice(t *testing.T) {
	items := []model.InvoiceItem{
		{Quantity: dec("3"), UnitPrice: dec("85")},
		{Quantity: dec("1"), UnitPrice: dec("150")},
	}
	payments := []model.Payment{
		{Amount: dec("200"), Status: model.PaymentStatusCompleted},
		{Amount: dec("50"), Status: model.PaymentStatusFailed},
		{Amount: dec("30"), Status: model.PaymentStatusPending},
	}
	totals := ComputeInvoice(items, payments, decimal.Zero, decimal.Zero)

	assert.True(t, dec("405").Equal(totals.Total))
	assert.True(t, dec("200").Equal(totals.AmountPaid), "only completed payments count")
	assert.True(t, dec("205").Equal(totals.BalanceDue))
}

func TestComputeInvoiceRefundAdjustment(t *testing.T) {
	items := []model.InvoiceItem{{Quantity: dec("1"), UnitPrice: dec("100")}}
	payments := []model.Payment{
		{Amount: dec("100"), Status: model.PaymentStatusCompleted},
		{Amount: dec("-40"), Status: model.PaymentStatusCompleted},
	}
	totals := ComputeInvoice(items, payments, decimal.Zero, decimal.Zero)

	assert.True(t, dec("60").Equal(totals.AmountPaid))
	assert.True(t, dec("40").Equal(totals.BalanceDue))
}

func TestPaymentStatus(t *testing.T) {
	items := []model.InvoiceItem{{Quantity: dec("1"), UnitPrice: dec("100")}}

	cases := []struct {
		name     string
		payments []model.Payment
		want     model.InvoiceStatus
	}{
		{"no payments", nil, model.InvoiceStatusSent},
		{"partial", []model.Payment{{Amount: dec("40"), Status: model.PaymentStatusCompleted}}, model.InvoiceStatusPartial},
		{"paid", []model.Payment{{Amount: dec("100"), Status: model.PaymentStatusCompleted}}, model.InvoiceStatusPaid},
		{"refunded to zero", []model.Payment{
			{Amount: dec("100"), Status: model.PaymentStatusRefunded},
		}, model.InvoiceStatusSent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := ComputeInvoice(items, tc.payments, decimal.Zero, decimal.Zero)
			assert.Equal(t, tc.want, PaymentStatus(model.InvoiceStatusSent, totals))
		})
	}
}
