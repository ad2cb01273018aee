package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

type conversionFixture struct {
	quotes      *memQuoteStore
	jobs        *memJobStore
	invoices    *memInvoiceStore
	quoteSvc    *QuoteService
	jobSvc      *JobService
	invoiceSvc  *InvoiceService
	conversions *ConversionService
}

func newConversionFixture() *conversionFixture {
	quotes := newMemQuoteStore()
	jobs := newMemJobStore()
	jobs.quotes = quotes
	invoices := newMemInvoiceStore()
	numbers := newMemNumbers()
	notifier := notify.NopNotifier{}
	policy := testPolicy()

	invoiceSvc := NewInvoiceService(invoices, jobs, numbers, notifier, policy, zerolog.Nop())
	return &conversionFixture{
		quotes:      quotes,
		jobs:        jobs,
		invoices:    invoices,
		quoteSvc:    NewQuoteService(quotes, numbers, notifier, policy),
		jobSvc:      NewJobService(jobs, numbers, &fakeStock{}, notifier, policy),
		invoiceSvc:  invoiceSvc,
		conversions: NewConversionService(quotes, jobs, invoiceSvc, numbers, notifier),
	}
}

func (f *conversionFixture) acceptedQuote(t *testing.T) *model.Quote {
	t.Helper()
	ctx := context.Background()
	input := draftQuoteInput()
	input.Items = append(input.Items, QuoteItemInput{
		Type: model.QuoteItemParts, Description: "BRG-6204", Quantity: dec("2"), UnitPrice: dec("15"),
	})
	quote, err := f.quoteSvc.Create(ctx, input)
	require.NoError(t, err)
	_, err = f.quoteSvc.Send(ctx, quote.ID, manager())
	require.NoError(t, err)
	accepted, err := f.quoteSvc.Respond(ctx, quote.ID, RespondQuoteInput{Accepted: true})
	require.NoError(t, err)
	return accepted
}

func TestQuoteToJobCopiesItems(t *testing.T) {
	f := newConversionFixture()
	quote := f.acceptedQuote(t)

	job, err := f.conversions.QuoteToJob(context.Background(), quote.ID, manager())
	require.NoError(t, err)

	// The labor item became a task, the parts item a pending part line.
	require.Len(t, job.Tasks, 1)
	assert.True(t, dec("2").Equal(job.Tasks[0].EstimatedHours), "hours %s", job.Tasks[0].EstimatedHours)
	require.Len(t, job.Parts, 1)
	assert.Equal(t, model.PartStatusPending, job.Parts[0].Status)
	assert.True(t, quote.Total.Equal(job.QuotedAmount))
	require.NotNil(t, job.QuoteID)
	assert.Equal(t, quote.ID, *job.QuoteID)

	stamped, err := f.quotes.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusConverted, stamped.Status)
	require.NotNil(t, stamped.ConvertedToJobID)
	assert.Equal(t, job.ID, *stamped.ConvertedToJobID)
}

func TestQuoteToJobIdempotent(t *testing.T) {
	f := newConversionFixture()
	quote := f.acceptedQuote(t)
	ctx := context.Background()

	first, err := f.conversions.QuoteToJob(ctx, quote.ID, manager())
	require.NoError(t, err)

	second, err := f.conversions.QuoteToJob(ctx, quote.ID, manager())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Exactly one job exists.
	assert.Len(t, f.jobs.jobs, 1)
}

func TestQuoteToJobRequiresAccepted(t *testing.T) {
	f := newConversionFixture()
	ctx := context.Background()

	quote, err := f.quoteSvc.Create(ctx, draftQuoteInput())
	require.NoError(t, err)

	_, err = f.conversions.QuoteToJob(ctx, quote.ID, manager())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.conversions.QuoteToJob(ctx, quote.ID, customer())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestJobToInvoiceRequiresCompleted(t *testing.T) {
	f := newConversionFixture()
	quote := f.acceptedQuote(t)
	ctx := context.Background()

	job, err := f.conversions.QuoteToJob(ctx, quote.ID, manager())
	require.NoError(t, err)

	_, err = f.conversions.JobToInvoice(ctx, job.ID, false, manager())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFullPipeline(t *testing.T) {
	f := newConversionFixture()
	quote := f.acceptedQuote(t)
	ctx := context.Background()

	job, err := f.conversions.QuoteToJob(ctx, quote.ID, manager())
	require.NoError(t, err)

	// Work the job: finish the task, install the part, record labor.
	_, err = f.jobSvc.UpdateStatus(ctx, job.ID, UpdateJobStatusInput{Status: model.JobStatusInProgress, By: technician()})
	require.NoError(t, err)
	done := model.TaskStatusCompleted
	_, err = f.jobSvc.UpdateTask(ctx, job.ID, job.Tasks[0].ID, UpdateTaskInput{Status: &done, By: technician()})
	require.NoError(t, err)
	_, err = f.jobSvc.UpdatePartStatus(ctx, job.ID, job.Parts[0].ID, model.PartStatusInstalled, technician())
	require.NoError(t, err)
	_, err = f.jobSvc.AddLabor(ctx, job.ID, JobLaborInput{
		EmployeeID: quote.CustomerID, Hours: dec("2"), By: technician(),
	})
	require.NoError(t, err)
	_, err = f.jobSvc.UpdateStatus(ctx, job.ID, UpdateJobStatusInput{Status: model.JobStatusQualityCheck, By: technician()})
	require.NoError(t, err)
	completed, err := f.jobSvc.UpdateStatus(ctx, job.ID, UpdateJobStatusInput{Status: model.JobStatusCompleted, By: manager()})
	require.NoError(t, err)
	assert.False(t, completed.ActualTotal.IsZero())

	inv, err := f.conversions.JobToInvoice(ctx, job.ID, false, manager())
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.True(t, inv.Total.IsPositive())

	// The next attempt without the additional flag conflicts.
	_, err = f.conversions.JobToInvoice(ctx, job.ID, false, manager())
	assert.ErrorIs(t, err, ErrAlreadyInvoiced)
}
