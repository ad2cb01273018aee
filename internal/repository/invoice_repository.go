package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `
	id, number, customer_id, job_id, row_version, status, subtotal, tax_rate,
	tax_amount, discount_amount, total, amount_paid, balance_due, invoice_date,
	due_date, sent_at, viewed_at, paid_at, voided_at, void_reason,
	reminder_count, created_at, updated_at
`

func (r *InvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: invoice", service.ErrNotFound)
	}
	if err := r.loadChildren(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, filter service.InvoiceFilter) ([]model.Invoice, int64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.CustomerID != nil {
		where = append(where, "customer_id = ?")
		args = append(args, *filter.CustomerID)
	}
	if filter.JobID != nil {
		where = append(where, "job_id = ?")
		args = append(args, *filter.JobID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.OverdueOnly {
		where = append(where, "due_date < NOW() AND balance_due > 0 AND status NOT IN (?, ?, ?)")
		args = append(args, model.InvoiceStatusDraft, model.InvoiceStatusPaid, model.InvoiceStatusVoid)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE `+cond, args...,
	).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if !filter.Page.SortDesc {
		order = "created_at ASC"
	}
	var invoices []model.Invoice
	listArgs := append(args, filter.Page.Limit, filter.Page.Offset)
	if err := r.db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		listArgs...,
	).Scan(&invoices).Error; err != nil {
		return nil, 0, err
	}

	for i := range invoices {
		if err := r.loadChildren(ctx, &invoices[i]); err != nil {
			return nil, 0, err
		}
	}
	return invoices, total, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			INSERT INTO invoices (
				id, number, customer_id, job_id, row_version, status, subtotal,
				tax_rate, tax_amount, discount_amount, total, amount_paid,
				balance_due, invoice_date, due_date, reminder_count
			) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, inv.ID, inv.Number, inv.CustomerID, inv.JobID, inv.Status,
			inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.DiscountAmount,
			inv.Total, inv.AmountPaid, inv.BalanceDue, inv.InvoiceDate,
			inv.DueDate).Error; err != nil {
			return err
		}
		if err := insertInvoiceItems(tx, inv); err != nil {
			return err
		}
		return insertHistory(tx, "invoice_status_history", &model.StatusChange{
			ID:       uuid.New(),
			EntityID: inv.ID,
			Status:   string(inv.Status),
		})
	})
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *model.Invoice, change *model.StatusChange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE invoices SET
				status = ?,
				subtotal = ?,
				tax_rate = ?,
				tax_amount = ?,
				discount_amount = ?,
				total = ?,
				amount_paid = ?,
				balance_due = ?,
				invoice_date = ?,
				due_date = ?,
				sent_at = ?,
				viewed_at = ?,
				paid_at = ?,
				voided_at = ?,
				void_reason = ?,
				reminder_count = ?,
				row_version = row_version + 1,
				updated_at = NOW()
			WHERE id = ? AND row_version = ?
		`, inv.Status, inv.Subtotal, inv.TaxRate, inv.TaxAmount,
			inv.DiscountAmount, inv.Total, inv.AmountPaid, inv.BalanceDue,
			inv.InvoiceDate, inv.DueDate, inv.SentAt, inv.ViewedAt, inv.PaidAt,
			inv.VoidedAt, inv.VoidReason, inv.ReminderCount, inv.ID, inv.RowVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: invoice %s", service.ErrVersionConflict, inv.ID)
		}

		if err := tx.Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, inv.ID).Error; err != nil {
			return err
		}
		if err := insertInvoiceItems(tx, inv); err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM payments WHERE invoice_id = ?`, inv.ID).Error; err != nil {
			return err
		}
		for _, p := range inv.Payments {
			if err := tx.Exec(`
				INSERT INTO payments (id, invoice_id, amount, method, status,
					refund_of, reference, date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, NOW()))
			`, p.ID, inv.ID, p.Amount, p.Method, p.Status, p.RefundOf,
				p.Reference, p.Date, nullTime(p.CreatedAt)).Error; err != nil {
				return err
			}
		}
		if change != nil {
			return insertHistory(tx, "invoice_status_history", change)
		}
		return nil
	})
	if err != nil {
		return err
	}
	inv.RowVersion++
	return nil
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: invoice", service.ErrNotFound)
	}
	return nil
}

func (r *InvoiceRepository) ListOpenByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE job_id = ? AND status <> ?
		ORDER BY created_at ASC
	`, jobID, model.InvoiceStatusVoid).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if err := r.loadChildren(ctx, &invoices[i]); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

// Revenue sums billed positions in SQL so the figures stay correct
// regardless of how many invoices exist.
func (r *InvoiceRepository) Revenue(ctx context.Context, from, to time.Time) (service.RevenueSummary, error) {
	var row struct {
		Invoiced  decimal.Decimal
		Collected decimal.Decimal
		Open      decimal.Decimal
		Count     int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(total), 0)       AS invoiced,
			COALESCE(SUM(amount_paid), 0) AS collected,
			COALESCE(SUM(balance_due), 0) AS open,
			COUNT(*)                      AS count
		FROM invoices
		WHERE status NOT IN (?, ?)
		  AND invoice_date >= ? AND invoice_date <= ?
	`, model.InvoiceStatusDraft, model.InvoiceStatusVoid, from, to).Scan(&row).Error
	if err != nil {
		return service.RevenueSummary{}, err
	}
	return service.RevenueSummary{
		Invoiced:  row.Invoiced,
		Collected: row.Collected,
		Open:      row.Open,
		Count:     row.Count,
	}, nil
}

func (r *InvoiceRepository) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return loadHistory(ctx, r.db, "invoice_status_history", id)
}

func (r *InvoiceRepository) loadChildren(ctx context.Context, inv *model.Invoice) error {
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, invoice_id, type, description, quantity, unit_price,
			total_price, job_part_id, job_labor_id, display_order
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY display_order ASC
	`, inv.ID).Scan(&inv.Items).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Raw(`
		SELECT id, invoice_id, amount, method, status, refund_of, reference,
			date, created_at
		FROM payments
		WHERE invoice_id = ?
		ORDER BY date ASC, created_at ASC
	`, inv.ID).Scan(&inv.Payments).Error
}

func insertInvoiceItems(tx *gorm.DB, inv *model.Invoice) error {
	for _, it := range inv.Items {
		if err := tx.Exec(`
			INSERT INTO invoice_items (id, invoice_id, type, description,
				quantity, unit_price, total_price, job_part_id, job_labor_id,
				display_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, inv.ID, it.Type, it.Description, it.Quantity, it.UnitPrice,
			it.TotalPrice, it.JobPartID, it.JobLaborID, it.DisplayOrder).Error; err != nil {
			return err
		}
	}
	return nil
}
