package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id, number, customer_id, quote_id, row_version, status, quoted_amount,
	actual_labor_cost, actual_parts_cost, actual_total, scheduled_start,
	scheduled_end, started_at, completed_at, due_date, created_at, updated_at
`

func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: job", service.ErrNotFound)
	}
	if err := r.loadChildren(ctx, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) List(ctx context.Context, filter service.JobFilter) ([]model.Job, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *filter.CustomerID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.OverdueOnly {
		where = append(where, "due_date IS NOT NULL AND due_date < NOW() AND status NOT IN (?, ?, ?)")
		args = append(args, model.JobStatusCompleted, model.JobStatusPickedUp, model.JobStatusCancelled)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM jobs WHERE `+cond, args...,
	).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if !filter.Page.SortDesc {
		order = "created_at ASC"
	}
	var jobs []model.Job
	listArgs := append(args, filter.Page.Limit, filter.Page.Offset)
	if err := r.db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM jobs WHERE `+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		listArgs...,
	).Scan(&jobs).Error; err != nil {
		return nil, 0, err
	}

	for i := range jobs {
		if err := r.loadChildren(ctx, &jobs[i]); err != nil {
			return nil, 0, err
		}
	}
	return jobs, total, nil
}

func (r *JobRepository) Create(ctx context.Context, j *model.Job, note *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertJob(tx, j); err != nil {
			return err
		}
		if err := insertJobChildren(tx, j); err != nil {
			return err
		}
		return insertHistory(tx, "job_status_history", &model.StatusChange{
			ID:       uuid.New(),
			EntityID: j.ID,
			Status:   string(j.Status),
			Notes:    note,
		})
	})
}

func (r *JobRepository) Update(ctx context.Context, j *model.Job, change *model.StatusChange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE jobs SET
				status = ?,
				quoted_amount = ?,
				actual_labor_cost = ?,
				actual_parts_cost = ?,
				actual_total = ?,
				scheduled_start = ?,
				scheduled_end = ?,
				started_at = ?,
				completed_at = ?,
				due_date = ?,
				row_version = row_version + 1,
				updated_at = NOW()
			WHERE id = ? AND row_version = ?
		`, j.Status, j.QuotedAmount, j.ActualLaborCost, j.ActualPartsCost,
			j.ActualTotal, j.ScheduledStart, j.ScheduledEnd, j.StartedAt,
			j.CompletedAt, j.DueDate, j.ID, j.RowVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: job %s", service.ErrVersionConflict, j.ID)
		}

		for _, table := range []string{"job_labor", "job_parts", "job_tasks"} {
			if err := tx.Exec(`DELETE FROM `+table+` WHERE job_id = ?`, j.ID).Error; err != nil {
				return err
			}
		}
		if err := insertJobChildren(tx, j); err != nil {
			return err
		}
		if change != nil {
			return insertHistory(tx, "job_status_history", change)
		}
		return nil
	})
	if err != nil {
		return err
	}
	j.RowVersion++
	return nil
}

func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job", service.ErrNotFound)
	}
	return nil
}

// CreateFromQuote inserts the job aggregate and stamps the source
// quote in the same transaction. The conditional quote update keeps
// the conversion idempotent under races: the loser sees a version
// conflict and the whole insert rolls back, leaving no orphan job.
func (r *JobRepository) CreateFromQuote(ctx context.Context, j *model.Job, quote *model.Quote, changedBy *uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertJob(tx, j); err != nil {
			return err
		}
		if err := insertJobChildren(tx, j); err != nil {
			return err
		}
		note := fmt.Sprintf("created from quote %s", quote.Number)
		if err := insertHistory(tx, "job_status_history", &model.StatusChange{
			ID:        uuid.New(),
			EntityID:  j.ID,
			Status:    string(j.Status),
			ChangedBy: changedBy,
			Notes:     &note,
		}); err != nil {
			return err
		}

		res := tx.Exec(`
			UPDATE quotes SET
				status = ?,
				converted_to_job_id = ?,
				row_version = row_version + 1,
				updated_at = NOW()
			WHERE id = ? AND row_version = ? AND converted_to_job_id IS NULL
		`, model.QuoteStatusConverted, j.ID, quote.ID, quote.RowVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: quote %s", service.ErrVersionConflict, quote.ID)
		}
		return insertHistory(tx, "quote_status_history", &model.StatusChange{
			ID:             uuid.New(),
			EntityID:       quote.ID,
			Status:         string(model.QuoteStatusConverted),
			PreviousStatus: string(quote.Status),
			ChangedBy:      changedBy,
		})
	})
	if err != nil {
		return err
	}
	quote.RowVersion++
	quote.Status = model.QuoteStatusConverted
	quote.ConvertedToJobID = &j.ID
	return nil
}

func (r *JobRepository) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return loadHistory(ctx, r.db, "job_status_history", id)
}

func (r *JobRepository) loadChildren(ctx context.Context, job *model.Job) error {
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, job_id, description, status, estimated_hours, actual_hours,
			depends_on_task_id, completed_at, display_order
		FROM job_tasks
		WHERE job_id = ?
		ORDER BY display_order ASC
	`, job.ID).Scan(&job.Tasks).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, job_id, task_id, part_ref, description, quantity, unit_cost,
			unit_price, total_price, status, created_at
		FROM job_parts
		WHERE job_id = ?
		ORDER BY created_at ASC
	`, job.ID).Scan(&job.Parts).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Raw(`
		SELECT id, job_id, task_id, employee_id, description, hours, hourly_rate,
			total_amount, performed_date, created_at
		FROM job_labor
		WHERE job_id = ?
		ORDER BY performed_date ASC, created_at ASC
	`, job.ID).Scan(&job.Labor).Error
}

func insertJob(tx *gorm.DB, j *model.Job) error {
	return tx.Exec(`
		INSERT INTO jobs (
			id, number, customer_id, quote_id, row_version, status, quoted_amount,
			actual_labor_cost, actual_parts_cost, actual_total, scheduled_start,
			scheduled_end, started_at, completed_at, due_date
		) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Number, j.CustomerID, j.QuoteID, j.Status, j.QuotedAmount,
		j.ActualLaborCost, j.ActualPartsCost, j.ActualTotal, j.ScheduledStart,
		j.ScheduledEnd, j.StartedAt, j.CompletedAt, j.DueDate).Error
}

func insertJobChildren(tx *gorm.DB, j *model.Job) error {
	for _, t := range j.Tasks {
		if err := tx.Exec(`
			INSERT INTO job_tasks (id, job_id, description, status, estimated_hours,
				actual_hours, depends_on_task_id, completed_at, display_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, j.ID, t.Description, t.Status, t.EstimatedHours, t.ActualHours,
			t.DependsOnTaskID, t.CompletedAt, t.DisplayOrder).Error; err != nil {
			return err
		}
	}
	for _, p := range j.Parts {
		if err := tx.Exec(`
			INSERT INTO job_parts (id, job_id, task_id, part_ref, description,
				quantity, unit_cost, unit_price, total_price, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, NOW()))
		`, p.ID, j.ID, p.TaskID, p.PartRef, p.Description, p.Quantity, p.UnitCost,
			p.UnitPrice, p.TotalPrice, p.Status, nullTime(p.CreatedAt)).Error; err != nil {
			return err
		}
	}
	for _, l := range j.Labor {
		if err := tx.Exec(`
			INSERT INTO job_labor (id, job_id, task_id, employee_id, description,
				hours, hourly_rate, total_amount, performed_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, NOW()))
		`, l.ID, j.ID, l.TaskID, l.EmployeeID, l.Description, l.Hours, l.HourlyRate,
			l.TotalAmount, l.PerformedDate, nullTime(l.CreatedAt)).Error; err != nil {
			return err
		}
	}
	return nil
}
