package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adilzhm/shopworks-billing/internal/inventory"
	"github.com/adilzhm/shopworks-billing/internal/ledger"
	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/notify"
)

type JobService struct {
	store    JobStore
	numbers  NumberIssuer
	stock    inventory.Ledger
	notifier notify.Notifier
	policy   model.BillingPolicy
	now      func() time.Time
}

func NewJobService(store JobStore, numbers NumberIssuer, stock inventory.Ledger, notifier notify.Notifier, policy model.BillingPolicy) *JobService {
	return &JobService{
		store:    store,
		numbers:  numbers,
		stock:    stock,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

type JobTaskInput struct {
	Description     string
	EstimatedHours  decimal.Decimal
	DependsOnTaskID *uuid.UUID
}

type CreateJobInput struct {
	CustomerID uuid.UUID
	Tasks      []JobTaskInput
	DueDate    *time.Time
	By         model.Principal
}

// Create opens a walk-in job with no backing quote. Quote conversions
// go through the conversion coordinator instead.
func (s *JobService) Create(ctx context.Context, input CreateJobInput) (*model.Job, error) {
	if !input.By.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	if input.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	}

	number, err := s.numbers.Next(ctx, model.EntityJob)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: input.CustomerID,
		Status:     model.JobStatusPending,
		DueDate:    input.DueDate,
	}
	for i, t := range input.Tasks {
		if t.Description == "" {
			return nil, fmt.Errorf("%w: task description is required", ErrInvalidInput)
		}
		if t.DependsOnTaskID != nil {
			return nil, fmt.Errorf("%w: task dependencies must reference existing tasks", ErrInvalidInput)
		}
		job.Tasks = append(job.Tasks, model.JobTask{
			ID:             uuid.New(),
			JobID:          job.ID,
			Description:    t.Description,
			Status:         model.TaskStatusPending,
			EstimatedHours: t.EstimatedHours,
			DisplayOrder:   i,
		})
	}

	note := "walk-in job created"
	if err := s.store.Create(ctx, job, &note); err != nil {
		return nil, err
	}
	s.notifier.Notify(notify.EventJobCreated, map[string]any{"job_id": job.ID.String(), "number": job.Number})
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return s.store.Get(ctx, id)
}

func (s *JobService) List(ctx context.Context, filter JobFilter) ([]model.Job, int64, error) {
	filter.Page = filter.Page.Clamp()
	return s.store.List(ctx, filter)
}

func (s *JobService) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return s.store.History(ctx, id)
}

type UpdateJobStatusInput struct {
	Status model.JobStatus
	Notes  *string
	By     model.Principal
}

func (s *JobService) UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateJobStatusInput) (*model.Job, error) {
	if err := staffOnly(input.By); err != nil {
		return nil, err
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.CanTransitionTo(input.Status) {
		return nil, fmt.Errorf("%w: job %s cannot move to %s", ErrInvalidTransition, job.Status, input.Status)
	}

	switch input.Status {
	case model.JobStatusCompleted:
		if !job.AllTasksDone() {
			return nil, fmt.Errorf("%w: all tasks must be completed or skipped first", ErrInvalidTransition)
		}
	case model.JobStatusCancelled:
		if job.HasInstalledParts() {
			return nil, fmt.Errorf("%w: installed parts must be returned before cancelling", ErrInvalidTransition)
		}
	}

	now := s.now()
	prev := job.Status
	job.Status = input.Status
	switch input.Status {
	case model.JobStatusInProgress:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case model.JobStatusCompleted:
		job.CompletedAt = &now
		s.recompute(job)
	}

	if err := s.store.Update(ctx, job, s.change(job.ID, prev, job.Status, &input.By.UserID, input.Notes)); err != nil {
		return nil, err
	}

	if input.Status == model.JobStatusCompleted {
		s.notifier.Notify(notify.EventJobCompleted, map[string]any{"job_id": job.ID.String(), "number": job.Number})
	}
	return job, nil
}

type ScheduleJobInput struct {
	Start time.Time
	End   time.Time
	By    model.Principal
}

// Schedule moves a pending job onto the calendar. The scheduler
// collaborator only receives the event; it never drives transitions
// back into this core.
func (s *JobService) Schedule(ctx context.Context, id uuid.UUID, input ScheduleJobInput) (*model.Job, error) {
	if err := staffOnly(input.By); err != nil {
		return nil, err
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.End.Before(input.Start) {
		return nil, fmt.Errorf("%w: scheduled end before start", ErrInvalidInput)
	}

	event := notify.EventJobRescheduled
	if job.Status == model.JobStatusPending {
		if !job.Status.CanTransitionTo(model.JobStatusScheduled) {
			return nil, fmt.Errorf("%w: job %s cannot be scheduled", ErrInvalidTransition, job.Status)
		}
		prev := job.Status
		job.Status = model.JobStatusScheduled
		job.ScheduledStart = &input.Start
		job.ScheduledEnd = &input.End
		if err := s.store.Update(ctx, job, s.change(job.ID, prev, job.Status, &input.By.UserID, nil)); err != nil {
			return nil, err
		}
		event = notify.EventJobCreated
	} else {
		if job.Status != model.JobStatusScheduled {
			return nil, fmt.Errorf("%w: job %s cannot be rescheduled", ErrInvalidTransition, job.Status)
		}
		job.ScheduledStart = &input.Start
		job.ScheduledEnd = &input.End
		if err := s.store.Update(ctx, job, nil); err != nil {
			return nil, err
		}
	}

	s.notifier.Notify(event, map[string]any{
		"job_id": job.ID.String(),
		"start":  input.Start.Format(time.RFC3339),
		"end":    input.End.Format(time.RFC3339),
	})
	return job, nil
}

func (s *JobService) AddTask(ctx context.Context, jobID uuid.UUID, input JobTaskInput, by model.Principal) (*model.Job, error) {
	if err := staffOnly(by); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: task description is required", ErrInvalidInput)
	}
	if input.DependsOnTaskID != nil {
		// A dependency may only point at a task already in the job,
		// which keeps the dependency graph acyclic.
		if findTask(job, *input.DependsOnTaskID) == nil {
			return nil, fmt.Errorf("%w: depends_on_task_id must reference a task in this job", ErrInvalidInput)
		}
	}

	job.Tasks = append(job.Tasks, model.JobTask{
		ID:              uuid.New(),
		JobID:           job.ID,
		Description:     input.Description,
		Status:          model.TaskStatusPending,
		EstimatedHours:  input.EstimatedHours,
		DependsOnTaskID: input.DependsOnTaskID,
		DisplayOrder:    len(job.Tasks),
	})
	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

type UpdateTaskInput struct {
	Status      *model.TaskStatus
	ActualHours *decimal.Decimal
	By          model.Principal
}

func (s *JobService) UpdateTask(ctx context.Context, jobID, taskID uuid.UUID, input UpdateTaskInput) (*model.Job, error) {
	if err := staffOnly(input.By); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	task := findTask(job, taskID)
	if task == nil {
		return nil, fmt.Errorf("%w: job task", ErrNotFound)
	}

	if input.Status != nil && *input.Status != task.Status {
		if !task.Status.CanTransitionTo(*input.Status) {
			return nil, fmt.Errorf("%w: task %s cannot move to %s", ErrInvalidTransition, task.Status, *input.Status)
		}
		if *input.Status == model.TaskStatusInProgress || *input.Status == model.TaskStatusCompleted {
			if blocked := unfinishedDependency(job, task); blocked != nil {
				return nil, fmt.Errorf("%w: task depends on unfinished task %s", ErrInvalidTransition, blocked.ID)
			}
		}
		task.Status = *input.Status
		if *input.Status == model.TaskStatusCompleted {
			now := s.now()
			task.CompletedAt = &now
		}
	}
	if input.ActualHours != nil {
		if input.ActualHours.IsNegative() {
			return nil, fmt.Errorf("%w: actual_hours cannot be negative", ErrInvalidInput)
		}
		task.ActualHours = *input.ActualHours
	}

	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) RemoveTask(ctx context.Context, jobID, taskID uuid.UUID, by model.Principal) (*model.Job, error) {
	if err := staffOnly(by); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	for _, t := range job.Tasks {
		if t.DependsOnTaskID != nil && *t.DependsOnTaskID == taskID {
			return nil, fmt.Errorf("%w: another task depends on this one", ErrInvalidInput)
		}
	}
	kept := job.Tasks[:0]
	found := false
	for _, t := range job.Tasks {
		if t.ID == taskID {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return nil, fmt.Errorf("%w: job task", ErrNotFound)
	}
	job.Tasks = kept

	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

type JobPartInput struct {
	TaskID      *uuid.UUID
	PartRef     string
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	UnitPrice   decimal.Decimal
	By          model.Principal
}

func (s *JobService) AddPart(ctx context.Context, jobID uuid.UUID, input JobPartInput) (*model.Job, error) {
	if err := staffOnly(input.By); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if input.PartRef == "" {
		return nil, fmt.Errorf("%w: part_ref is required", ErrInvalidInput)
	}
	if !input.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: part quantity must be positive", ErrInvalidInput)
	}
	if input.UnitPrice.IsNegative() || input.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: part prices cannot be negative", ErrInvalidInput)
	}
	if input.TaskID != nil && findTask(job, *input.TaskID) == nil {
		return nil, fmt.Errorf("%w: task_id must reference a task in this job", ErrInvalidInput)
	}

	job.Parts = append(job.Parts, model.JobPart{
		ID:          uuid.New(),
		JobID:       job.ID,
		TaskID:      input.TaskID,
		PartRef:     input.PartRef,
		Description: input.Description,
		Quantity:    input.Quantity,
		UnitCost:    input.UnitCost,
		UnitPrice:   input.UnitPrice,
		TotalPrice:  ledger.LineTotal(input.Quantity, input.UnitPrice),
		Status:      model.PartStatusPending,
	})
	s.recompute(job)

	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdatePartStatus validates the part transition and keeps the
// inventory ledger in step: INSTALLED consumes stock, RETURNED
// restocks it. The ledger call runs first so a collaborator failure
// leaves the part untouched; if the write itself fails afterwards the
// stock movement is compensated.
func (s *JobService) UpdatePartStatus(ctx context.Context, jobID, partID uuid.UUID, next model.PartStatus, by model.Principal) (*model.Job, error) {
	if err := staffOnly(by); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	part := findPart(job, partID)
	if part == nil {
		return nil, fmt.Errorf("%w: job part", ErrNotFound)
	}
	if !part.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: part %s cannot move to %s", ErrInvalidTransition, part.Status, next)
	}

	var compensate func()
	switch next {
	case model.PartStatusInstalled:
		req := inventory.ConsumeRequest{JobID: job.ID, PartID: part.ID, PartRef: part.PartRef, Quantity: part.Quantity}
		if err := s.stock.Consume(ctx, req); err != nil {
			return nil, wrapStockErr(err)
		}
		compensate = func() {
			_ = s.stock.Restock(ctx, inventory.RestockRequest(req))
		}
	case model.PartStatusReturned:
		req := inventory.RestockRequest{JobID: job.ID, PartID: part.ID, PartRef: part.PartRef, Quantity: part.Quantity}
		if err := s.stock.Restock(ctx, req); err != nil {
			return nil, wrapStockErr(err)
		}
		compensate = func() {
			_ = s.stock.Consume(ctx, inventory.ConsumeRequest(req))
		}
	}

	part.Status = next
	s.recompute(job)

	if err := s.store.Update(ctx, job, nil); err != nil {
		if compensate != nil {
			compensate()
		}
		return nil, err
	}
	return job, nil
}

type JobLaborInput struct {
	TaskID        *uuid.UUID
	EmployeeID    uuid.UUID
	Description   string
	Hours         decimal.Decimal
	HourlyRate    *decimal.Decimal
	PerformedDate *time.Time
	By            model.Principal
}

func (s *JobService) AddLabor(ctx context.Context, jobID uuid.UUID, input JobLaborInput) (*model.Job, error) {
	if err := staffOnly(input.By); err != nil {
		return nil, err
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if input.EmployeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee_id is required", ErrInvalidInput)
	}
	if !input.Hours.IsPositive() {
		return nil, fmt.Errorf("%w: hours must be positive", ErrInvalidInput)
	}
	if input.TaskID != nil && findTask(job, *input.TaskID) == nil {
		return nil, fmt.Errorf("%w: task_id must reference a task in this job", ErrInvalidInput)
	}

	rate := s.policy.DefaultLaborRate
	if input.HourlyRate != nil {
		if input.HourlyRate.IsNegative() {
			return nil, fmt.Errorf("%w: hourly_rate cannot be negative", ErrInvalidInput)
		}
		rate = *input.HourlyRate
	}
	performed := s.now()
	if input.PerformedDate != nil {
		performed = *input.PerformedDate
	}

	job.Labor = append(job.Labor, model.JobLabor{
		ID:            uuid.New(),
		JobID:         job.ID,
		TaskID:        input.TaskID,
		EmployeeID:    input.EmployeeID,
		Description:   input.Description,
		Hours:         input.Hours,
		HourlyRate:    rate,
		TotalAmount:   ledger.LineTotal(input.Hours, rate),
		PerformedDate: performed,
	})
	s.recompute(job)

	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) RemoveLabor(ctx context.Context, jobID, laborID uuid.UUID, by model.Principal) (*model.Job, error) {
	if !by.CanManageBilling() {
		return nil, ErrPermissionDenied
	}
	job, err := s.mutableJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	kept := job.Labor[:0]
	found := false
	for _, l := range job.Labor {
		if l.ID == laborID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return nil, fmt.Errorf("%w: labor entry", ErrNotFound)
	}
	job.Labor = kept
	s.recompute(job)

	if err := s.store.Update(ctx, job, nil); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job administratively. Only possible before any
// labor or part movement is recorded; anything later goes through the
// CANCELLED transition instead.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID, by model.Principal) error {
	if !by.IsAdmin() {
		return ErrPermissionDenied
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.HasWorkRecorded() {
		return fmt.Errorf("%w: jobs with recorded work can only be cancelled", ErrInvalidInput)
	}
	return s.store.Delete(ctx, id)
}

func (s *JobService) ListOverdue(ctx context.Context) ([]model.Job, error) {
	jobs, _, err := s.store.List(ctx, JobFilter{OverdueOnly: true, Page: Page{Limit: 100}})
	return jobs, err
}

func (s *JobService) mutableJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case model.JobStatusCompleted, model.JobStatusPickedUp, model.JobStatusCancelled:
		return nil, fmt.Errorf("%w: job %s is closed", ErrInvalidTransition, job.Status)
	}
	return job, nil
}

func (s *JobService) recompute(job *model.Job) {
	rollup := ledger.ComputeJob(job.Labor, job.Parts)
	job.ActualLaborCost = rollup.ActualLaborCost
	job.ActualPartsCost = rollup.ActualPartsCost
	job.ActualTotal = rollup.ActualTotal
}

func (s *JobService) change(entityID uuid.UUID, prev, next model.JobStatus, by *uuid.UUID, notes *string) *model.StatusChange {
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

func staffOnly(p model.Principal) error {
	if p.IsCustomer() {
		return ErrPermissionDenied
	}
	return nil
}

func findTask(job *model.Job, id uuid.UUID) *model.JobTask {
	for i := range job.Tasks {
		if job.Tasks[i].ID == id {
			return &job.Tasks[i]
		}
	}
	return nil
}

func findPart(job *model.Job, id uuid.UUID) *model.JobPart {
	for i := range job.Parts {
		if job.Parts[i].ID == id {
			return &job.Parts[i]
		}
	}
	return nil
}

func unfinishedDependency(job *model.Job, task *model.JobTask) *model.JobTask {
	if task.DependsOnTaskID == nil {
		return nil
	}
	dep := findTask(job, *task.DependsOnTaskID)
	if dep == nil {
		return nil
	}
	if dep.Status != model.TaskStatusCompleted && dep.Status != model.TaskStatusSkipped {
		return dep
	}
	return nil
}

func wrapStockErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrInsufficientStock):
		return fmt.Errorf("%w: %v", ErrInsufficientStock, err)
	default:
		return fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}
}
