package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

// ConversionService coordinates the two cross-entity hand-offs in the
// pipeline: accepted quote to job and completed job to invoice. Both
// are atomic and idempotent.
type ConversionService struct {
	quotes   QuoteStore
	jobs     JobStore
	invoices *InvoiceService
	numbers  NumberIssuer
	notifier notify.Notifier
}

func NewConversionService(quotes QuoteStore, jobs JobStore, invoices *InvoiceService, numbers NumberIssuer, notifier notify.Notifier) *ConversionService {
	return &ConversionService{
		quotes:   quotes,
		jobs:     jobs,
		invoices: invoices,
		numbers:  numbers,
		notifier: notifier,
	}
}

// QuoteToJob converts an accepted quote into a job. The job aggregate
// and the quote's conversion marker are written in one transaction,
// so a failed marker update leaves no orphan job. Calling again for
// an already-converted quote returns the existing job.
func (s *ConversionService) QuoteToJob(ctx context.Context, quoteID uuid.UUID, by model.Principal) (*model.Job, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	quote, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	if quote.ConvertedToJobID != nil {
		return s.jobs.Get(ctx, *quote.ConvertedToJobID)
	}
	if quote.Status != model.QuoteStatusAccepted {
		return nil, fmt.Errorf("%w: only accepted quotes convert to jobs, quote is %s", ErrInvalidTransition, quote.Status)
	}

	number, err := s.numbers.Next(ctx, model.EntityJob)
	if err != nil {
		return nil, err
	}

	job := s.buildJob(quote, number)
	if err := s.jobs.CreateFromQuote(ctx, job, quote, &by.UserID); err != nil {
		return nil, err
	}

	s.notifier.Notify(notify.EventJobCreated, map[string]any{
		"job_id":   job.ID.String(),
		"number":   job.Number,
		"quote_id": quote.ID.String(),
	})
	return job, nil
}

// JobToInvoice bills a completed job. Idempotency is enforced by the
// invoice engine's open-invoice check; additional invoices need the
// explicit flag.
func (s *ConversionService) JobToInvoice(ctx context.Context, jobID uuid.UUID, additional bool, by model.Principal) (*model.Invoice, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted && job.Status != model.JobStatusPickedUp {
		return nil, fmt.Errorf("%w: only completed jobs can be invoiced, job is %s", ErrInvalidTransition, job.Status)
	}

	return s.invoices.CreateFromJob(ctx, CreateFromJobInput{
		JobID:      jobID,
		Additional: additional,
		By:         by,
	})
}

// buildJob copies quote items into the job skeleton at prices frozen
// now: labor and service items become tasks with hour estimates,
// parts become pending part lines.
func (s *ConversionService) buildJob(quote *model.Quote, number string) *model.Job {
	quoteID := quote.ID
	job := &model.Job{
		ID:           uuid.New(),
		Number:       number,
		CustomerID:   quote.CustomerID,
		QuoteID:      &quoteID,
		Status:       model.JobStatusPending,
		QuotedAmount: quote.Total,
	}

	order := 0
	for _, it := range quote.Items {
		switch it.Type {
		case model.QuoteItemParts:
			job.Parts = append(job.Parts, model.JobPart{
				ID:          uuid.New(),
				JobID:       job.ID,
				PartRef:     it.Description,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				TotalPrice:  it.TotalPrice,
				Status:      model.PartStatusPending,
			})
		default:
			// Labor, service and other items become task estimates.
			job.Tasks = append(job.Tasks, model.JobTask{
				ID:             uuid.New(),
				JobID:          job.ID,
				Description:    it.Description,
				Status:         model.TaskStatusPending,
				EstimatedHours: estimatedHours(it),
				DisplayOrder:   order,
			})
			order++
		}
	}
	return job
}

// Labor items are quoted in hours, so the quantity doubles as the
// task's hour estimate.
func estimatedHours(it model.QuoteItem) decimal.Decimal {
	if it.Type == model.QuoteItemLabor {
		return it.Quantity
	}
	return decimal.Zero
}
