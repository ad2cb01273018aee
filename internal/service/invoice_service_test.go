package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

func newInvoiceService(store *memInvoiceStore, jobs *memJobStore) *InvoiceService {
	return newInvoiceServiceWithPolicy(store, jobs, testPolicy())
}

func newInvoiceServiceWithPolicy(store *memInvoiceStore, jobs *memJobStore, policy model.BillingPolicy) *InvoiceService {
	if jobs == nil {
		jobs = newMemJobStore()
	}
	return NewInvoiceService(store, jobs, newMemNumbers(), notify.NopNotifier{}, policy, zerolog.Nop())
}

func standaloneInvoiceInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		CustomerID: uuid.New(),
		Items: []InvoiceItemInput{
			{Type: model.InvoiceItemService, Description: "Surface grinding", Quantity: dec("1"), UnitPrice: dec("375")},
		},
		By: manager(),
	}
}

// completedJob seeds a job with recorded labor and an installed part.
func completedJob(t *testing.T, jobs *memJobStore) *model.Job {
	t.Helper()
	job := &model.Job{
		ID:         uuid.New(),
		Number:     "JOB-2026-0042",
		CustomerID: uuid.New(),
		Status:     model.JobStatusCompleted,
	}
	job.Labor = []model.JobLabor{{
		ID: uuid.New(), JobID: job.ID, EmployeeID: uuid.New(),
		Description: "Machining", Hours: dec("3"), HourlyRate: dec("85"), TotalAmount: dec("255"),
	}}
	job.Parts = []model.JobPart{
		{
			ID: uuid.New(), JobID: job.ID, PartRef: "BRG-6204", Description: "Bearing",
			Quantity: dec("1"), UnitPrice: dec("150"), TotalPrice: dec("150"),
			Status: model.PartStatusInstalled,
		},
		{
			ID: uuid.New(), JobID: job.ID, PartRef: "SHF-010", Description: "Shaft blank",
			Quantity: dec("1"), UnitPrice: dec("60"), TotalPrice: dec("60"),
			Status: model.PartStatusOrdered,
		},
	}
	job.ActualLaborCost = dec("255")
	job.ActualPartsCost = dec("150")
	job.ActualTotal = dec("405")
	require.NoError(t, jobs.Create(context.Background(), job, nil))
	return job
}

func TestInvoiceCreateStandalone(t *testing.T) {
	svc := newInvoiceService(newMemInvoiceStore(), nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "INV-2026-0001", inv.Number)
	assert.True(t, dec("375").Equal(inv.Subtotal))
	assert.True(t, dec("405").Equal(inv.Total), "total %s", inv.Total) // 375 + 8% tax
	assert.True(t, dec("405").Equal(inv.BalanceDue))
}

func TestInvoiceCreateFromJobCopiesBillableLines(t *testing.T) {
	jobs := newMemJobStore()
	job := completedJob(t, jobs)
	svc := newInvoiceService(newMemInvoiceStore(), jobs)

	zero := dec("0")
	inv, err := svc.CreateFromJob(context.Background(), CreateFromJobInput{
		JobID: job.ID, TaxRate: &zero, By: manager(),
	})
	require.NoError(t, err)

	// Labor plus the installed part; the ordered part is not billed.
	require.Len(t, inv.Items, 2)
	assert.Equal(t, model.InvoiceItemLabor, inv.Items[0].Type)
	assert.Equal(t, model.InvoiceItemParts, inv.Items[1].Type)
	assert.NotNil(t, inv.Items[0].JobLaborID)
	assert.NotNil(t, inv.Items[1].JobPartID)
	assert.True(t, dec("405").Equal(inv.Total), "total %s", inv.Total)
	require.NotNil(t, inv.JobID)
	assert.Equal(t, job.ID, *inv.JobID)
}

func TestInvoiceCreateFromJobSecondCallConflicts(t *testing.T) {
	jobs := newMemJobStore()
	job := completedJob(t, jobs)
	svc := newInvoiceService(newMemInvoiceStore(), jobs)

	_, err := svc.CreateFromJob(context.Background(), CreateFromJobInput{JobID: job.ID, By: manager()})
	require.NoError(t, err)

	_, err = svc.CreateFromJob(context.Background(), CreateFromJobInput{JobID: job.ID, By: manager()})
	assert.ErrorIs(t, err, ErrAlreadyInvoiced)

	// The explicit additional flag permits progress billing.
	_, err = svc.CreateFromJob(context.Background(), CreateFromJobInput{JobID: job.ID, Additional: true, By: manager()})
	require.NoError(t, err)
}

func TestInvoiceCreateFromJobNothingBillable(t *testing.T) {
	jobs := newMemJobStore()
	job := &model.Job{ID: uuid.New(), Number: "JOB-2026-0001", CustomerID: uuid.New(), Status: model.JobStatusCompleted}
	require.NoError(t, jobs.Create(context.Background(), job, nil))
	svc := newInvoiceService(newMemInvoiceStore(), jobs)

	_, err := svc.CreateFromJob(context.Background(), CreateFromJobInput{JobID: job.ID, By: manager()})
	assert.ErrorIs(t, err, ErrNothingBillable)
}

func TestInvoicePaymentFlow(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)

	// Draft invoices cannot take payments.
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("100"), Method: "card", By: manager()})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)

	// Total is 405: a 200 payment leaves it partial.
	partial, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("200"), Method: "card", By: manager()})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartial, partial.Status)
	assert.True(t, dec("205").Equal(partial.BalanceDue), "balance %s", partial.BalanceDue)

	// Settling the remaining 205 pays it off.
	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("205"), Method: "card", By: manager()})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	assert.True(t, paid.BalanceDue.IsZero())
	require.NotNil(t, paid.PaidAt)

	// Paid invoices take no further payments.
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("1"), Method: "card", By: manager()})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInvoiceOverpaymentRejected(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("500"), Method: "card", By: manager()})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvoiceOverpaymentAllowedByPolicy(t *testing.T) {
	policy := testPolicy()
	policy.AllowOverpaymentCredit = true
	store := newMemInvoiceStore()
	svc := newInvoiceServiceWithPolicy(store, nil, policy)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)

	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("500"), Method: "card", By: manager()})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	// Negative balance is the customer's credit.
	assert.True(t, dec("-95").Equal(paid.BalanceDue), "balance %s", paid.BalanceDue)
}

func TestInvoiceRefunds(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("405"), Method: "card", By: manager()})
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusPaid, paid.Status)

	// A partial refund reopens the invoice and links the adjustment.
	half := dec("200")
	reopened, err := svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: paid.Payments[0].ID, Amount: &half, By: manager(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartial, reopened.Status)
	assert.True(t, dec("205").Equal(reopened.AmountPaid), "paid %s", reopened.AmountPaid)
	require.Len(t, reopened.Payments, 2)
	require.NotNil(t, reopened.Payments[1].RefundOf)
	assert.Equal(t, paid.Payments[0].ID, *reopened.Payments[1].RefundOf)
	assert.Nil(t, reopened.PaidAt)
}

func TestInvoiceFullRefundFlipsPayment(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("405"), Method: "card", By: manager()})
	require.NoError(t, err)

	refunded, err := svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: paid.Payments[0].ID, By: manager(),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, refunded.Payments[0].Status)
	assert.True(t, refunded.AmountPaid.IsZero())
	assert.Equal(t, model.InvoiceStatusSent, refunded.Status)
}

func TestInvoiceRefundBlockedWhenVoid(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	partial, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("50"), Method: "card", By: manager()})
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusPartial, partial.Status)

	_, err = svc.Void(context.Background(), inv.ID, "customer dispute", manager())
	require.NoError(t, err)

	half := dec("25")
	_, err = svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: partial.Payments[0].ID, Amount: &half, By: manager(),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	inv, err = svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusVoid, inv.Status)
}

func TestInvoiceRepeatedPartialRefundsCapped(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	paid, err := svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("405"), Method: "card", By: manager()})
	require.NoError(t, err)
	paymentID := paid.Payments[0].ID

	first := dec("300")
	reopened, err := svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: paymentID, Amount: &first, By: manager(),
	})
	require.NoError(t, err)
	assert.True(t, dec("105").Equal(reopened.AmountPaid), "paid %s", reopened.AmountPaid)

	// A second refund is capped at the un-refunded remainder.
	_, err = svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: paymentID, Amount: &first, By: manager(),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	rest := dec("105")
	settled, err := svc.RefundPayment(context.Background(), inv.ID, RefundPaymentInput{
		PaymentID: paymentID, Amount: &rest, By: manager(),
	})
	require.NoError(t, err)
	assert.True(t, settled.AmountPaid.IsZero(), "paid %s", settled.AmountPaid)
	assert.True(t, settled.BalanceDue.Equal(settled.Total), "balance %s", settled.BalanceDue)
	assert.Equal(t, model.InvoiceStatusSent, settled.Status)
	for _, p := range settled.Payments {
		assert.Equal(t, model.PaymentStatusRefunded, p.Status)
	}
}

func TestInvoiceVoidRules(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), inv.ID, "", manager())
	assert.ErrorIs(t, err, ErrInvalidInput)

	voided, err := svc.Void(context.Background(), inv.ID, "duplicate entry", manager())
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusVoid, voided.Status)
	require.NotNil(t, voided.VoidReason)

	// VOID is terminal.
	_, err = svc.Send(context.Background(), inv.ID, manager())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInvoiceVoidBlockedWhenPaid(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("405"), Method: "card", By: manager()})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), inv.ID, "mistake", manager())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInvoiceDeleteRules(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), inv.ID, manager())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvoiceDisplayStatusOverdue(t *testing.T) {
	inv := &model.Invoice{
		Status:     model.InvoiceStatusSent,
		DueDate:    time.Now().AddDate(0, 0, -1),
		BalanceDue: dec("100"),
	}
	assert.Equal(t, model.InvoiceStatusOverdue, inv.DisplayStatus(time.Now()))

	inv.BalanceDue = dec("0")
	assert.Equal(t, model.InvoiceStatusSent, inv.DisplayStatus(time.Now()))
}

func TestInvoiceRevenueSummary(t *testing.T) {
	store := newMemInvoiceStore()
	svc := newInvoiceService(store, nil)

	inv, err := svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), inv.ID, manager())
	require.NoError(t, err)
	_, err = svc.RecordPayment(context.Background(), inv.ID, RecordPaymentInput{Amount: dec("200"), Method: "card", By: manager()})
	require.NoError(t, err)

	// A draft invoice is excluded from revenue.
	_, err = svc.CreateStandalone(context.Background(), standaloneInvoiceInput())
	require.NoError(t, err)

	from := time.Now().AddDate(0, 0, -1)
	to := time.Now().AddDate(0, 0, 1)
	summary, err := svc.Revenue(context.Background(), from, to)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Count)
	assert.True(t, dec("405").Equal(summary.Invoiced), "invoiced %s", summary.Invoiced)
	assert.True(t, dec("200").Equal(summary.Collected))
	assert.True(t, dec("205").Equal(summary.Open))

	_, err = svc.Revenue(context.Background(), to, from)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
