package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type JobStatus string

const (
	JobStatusPending      JobStatus = "PENDING"
	JobStatusScheduled    JobStatus = "SCHEDULED"
	JobStatusInProgress   JobStatus = "IN_PROGRESS"
	JobStatusOnHold       JobStatus = "ON_HOLD"
	JobStatusQualityCheck JobStatus = "QUALITY_CHECK"
	JobStatusCompleted    JobStatus = "COMPLETED"
	JobStatusPickedUp     JobStatus = "PICKED_UP"
	JobStatusCancelled    JobStatus = "CANCELLED"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:      {JobStatusScheduled, JobStatusInProgress, JobStatusCancelled},
	JobStatusScheduled:    {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress:   {JobStatusOnHold, JobStatusQualityCheck, JobStatusCancelled},
	JobStatusOnHold:       {JobStatusInProgress},
	JobStatusQualityCheck: {JobStatusInProgress, JobStatusCompleted},
	JobStatusCompleted:    {JobStatusPickedUp},
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

func ParseJobStatus(raw string) (JobStatus, bool) {
	switch JobStatus(raw) {
	case JobStatusPending, JobStatusScheduled, JobStatusInProgress, JobStatusOnHold,
		JobStatusQualityCheck, JobStatusCompleted, JobStatusPickedUp, JobStatusCancelled:
		return JobStatus(raw), true
	default:
		return "", false
	}
}

type Job struct {
	ID              uuid.UUID
	Number          string
	CustomerID      uuid.UUID
	QuoteID         *uuid.UUID
	Status          JobStatus
	Tasks           []JobTask  `gorm:"-"`
	Parts           []JobPart  `gorm:"-"`
	Labor           []JobLabor `gorm:"-"`
	QuotedAmount    decimal.Decimal
	ActualLaborCost decimal.Decimal
	ActualPartsCost decimal.Decimal
	ActualTotal     decimal.Decimal
	ScheduledStart  *time.Time
	ScheduledEnd    *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DueDate         *time.Time
	RowVersion      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasWorkRecorded reports whether any labor or non-pending part exists,
// which blocks administrative deletion.
func (j *Job) HasWorkRecorded() bool {
	if len(j.Labor) > 0 {
		return true
	}
	for _, p := range j.Parts {
		if p.Status != PartStatusPending {
			return true
		}
	}
	return false
}

func (j *Job) HasInstalledParts() bool {
	for _, p := range j.Parts {
		if p.Status == PartStatusInstalled {
			return true
		}
	}
	return false
}

func (j *Job) AllTasksDone() bool {
	for _, t := range j.Tasks {
		if t.Status != TaskStatusCompleted && t.Status != TaskStatusSkipped {
			return false
		}
	}
	return true
}

func (j *Job) Overdue(now time.Time) bool {
	if j.DueDate == nil || j.Status == JobStatusCompleted || j.Status == JobStatusPickedUp || j.Status == JobStatusCancelled {
		return false
	}
	return now.After(*j.DueDate)
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusSkipped    TaskStatus = "SKIPPED"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCompleted, TaskStatusSkipped},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusSkipped},
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseTaskStatus(raw string) (TaskStatus, bool) {
	switch TaskStatus(raw) {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusSkipped:
		return TaskStatus(raw), true
	default:
		return "", false
	}
}

type JobTask struct {
	ID              uuid.UUID
	JobID           uuid.UUID
	Description     string
	Status          TaskStatus
	EstimatedHours  decimal.Decimal
	ActualHours     decimal.Decimal
	DependsOnTaskID *uuid.UUID
	CompletedAt     *time.Time
	DisplayOrder    int
}

type PartStatus string

const (
	PartStatusPending   PartStatus = "PENDING"
	PartStatusOrdered   PartStatus = "ORDERED"
	PartStatusReceived  PartStatus = "RECEIVED"
	PartStatusInstalled PartStatus = "INSTALLED"
	PartStatusReturned  PartStatus = "RETURNED"
)

var partTransitions = map[PartStatus][]PartStatus{
	PartStatusPending:   {PartStatusOrdered, PartStatusReceived, PartStatusInstalled},
	PartStatusOrdered:   {PartStatusReceived},
	PartStatusReceived:  {PartStatusInstalled},
	PartStatusInstalled: {PartStatusReturned},
}

func (s PartStatus) CanTransitionTo(next PartStatus) bool {
	for _, allowed := range partTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParsePartStatus(raw string) (PartStatus, bool) {
	switch PartStatus(raw) {
	case PartStatusPending, PartStatusOrdered, PartStatusReceived, PartStatusInstalled, PartStatusReturned:
		return PartStatus(raw), true
	default:
		return "", false
	}
}

type JobPart struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	TaskID      *uuid.UUID
	PartRef     string
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	Status      PartStatus
	CreatedAt   time.Time
}

type JobLabor struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	TaskID        *uuid.UUID
	EmployeeID    uuid.UUID
	Description   string
	Hours         decimal.Decimal
	HourlyRate    decimal.Decimal
	TotalAmount   decimal.Decimal
	PerformedDate time.Time
	CreatedAt     time.Time
}
