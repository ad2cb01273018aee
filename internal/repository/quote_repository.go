package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

const quoteColumns = `
	id, number, customer_id, service_request_id, family_id, revision,
	parent_quote_id, row_version, status, subtotal, tax_rate, tax_amount,
	discount_amount, total, valid_until, sent_at, viewed_at, responded_at,
	approved_by_name, decline_reason, converted_to_job_id, created_at, updated_at
`

func (r *QuoteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	var quote model.Quote
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&quote).Error
	if err != nil {
		return nil, err
	}
	if quote.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: quote", service.ErrNotFound)
	}

	items, err := r.loadItems(ctx, r.db, quote.ID)
	if err != nil {
		return nil, err
	}
	quote.Items = items
	return &quote, nil
}

func (r *QuoteRepository) List(ctx context.Context, filter service.QuoteFilter) ([]model.Quote, int64, error) {
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
	if filter.FamilyID != nil {
		where = append(where, "family_id = ?")
		args = append(args, *filter.FamilyID)
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM quotes WHERE `+cond, args...,
	).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at DESC"
	if !filter.Page.SortDesc {
		order = "created_at ASC"
	}
	var quotes []model.Quote
	listArgs := append(args, filter.Page.Limit, filter.Page.Offset)
	if err := r.db.WithContext(ctx).Raw(
		`SELECT `+quoteColumns+` FROM quotes WHERE `+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		listArgs...,
	).Scan(&quotes).Error; err != nil {
		return nil, 0, err
	}

	for i := range quotes {
		items, err := r.loadItems(ctx, r.db, quotes[i].ID)
		if err != nil {
			return nil, 0, err
		}
		quotes[i].Items = items
	}
	return quotes, total, nil
}

func (r *QuoteRepository) Create(ctx context.Context, q *model.Quote) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertQuote(tx, q); err != nil {
			return err
		}
		if err := insertQuoteItems(tx, q); err != nil {
			return err
		}
		return insertHistory(tx, "quote_status_history", &model.StatusChange{
			ID:       uuid.New(),
			EntityID: q.ID,
			Status:   string(q.Status),
		})
	})
}

// Update rewrites the aggregate conditionally on row_version. A lost
// race surfaces as ErrVersionConflict; the caller refetches and
// retries.
func (r *QuoteRepository) Update(ctx context.Context, q *model.Quote, change *model.StatusChange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE quotes SET
				status = ?,
				subtotal = ?,
				tax_rate = ?,
				tax_amount = ?,
				discount_amount = ?,
				total = ?,
				valid_until = ?,
				sent_at = ?,
				viewed_at = ?,
				responded_at = ?,
				approved_by_name = ?,
				decline_reason = ?,
				converted_to_job_id = ?,
				row_version = row_version + 1,
				updated_at = NOW()
			WHERE id = ? AND row_version = ?
		`, q.Status, q.Subtotal, q.TaxRate, q.TaxAmount, q.DiscountAmount, q.Total,
			q.ValidUntil, q.SentAt, q.ViewedAt, q.RespondedAt, q.ApprovedByName,
			q.DeclineReason, q.ConvertedToJobID, q.ID, q.RowVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: quote %s", service.ErrVersionConflict, q.ID)
		}

		if err := tx.Exec(`DELETE FROM quote_items WHERE quote_id = ?`, q.ID).Error; err != nil {
			return err
		}
		if err := insertQuoteItems(tx, q); err != nil {
			return err
		}
		if change != nil {
			return insertHistory(tx, "quote_status_history", change)
		}
		return nil
	})
	if err != nil {
		return err
	}
	q.RowVersion++
	return nil
}

func (r *QuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM quotes WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: quote", service.ErrNotFound)
	}
	return nil
}

// Revise closes the old row and inserts the next draft in one
// transaction.
func (r *QuoteRepository) Revise(ctx context.Context, old *model.Quote, next *model.Quote, changedBy *uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE quotes SET status = ?, row_version = row_version + 1, updated_at = NOW()
			WHERE id = ? AND row_version = ?
		`, model.QuoteStatusRevised, old.ID, old.RowVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: quote %s", service.ErrVersionConflict, old.ID)
		}
		if err := insertHistory(tx, "quote_status_history", &model.StatusChange{
			ID:        uuid.New(),
			EntityID:  old.ID,
			Status:    string(model.QuoteStatusRevised),
			ChangedBy: changedBy,
		}); err != nil {
			return err
		}

		if err := insertQuote(tx, next); err != nil {
			return err
		}
		if err := insertQuoteItems(tx, next); err != nil {
			return err
		}
		return insertHistory(tx, "quote_status_history", &model.StatusChange{
			ID:        uuid.New(),
			EntityID:  next.ID,
			Status:    string(next.Status),
			ChangedBy: changedBy,
		})
	})
	if err != nil {
		return err
	}
	old.RowVersion++
	return nil
}

// ListPendingFollowUp pushes the age cutoff into SQL so follow-up
// candidates are never truncated by a page limit.
func (r *QuoteRepository) ListPendingFollowUp(ctx context.Context, cutoff time.Time) ([]model.Quote, error) {
	var quotes []model.Quote
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE status IN (?, ?) AND sent_at < ?
		ORDER BY sent_at ASC
	`, model.QuoteStatusSent, model.QuoteStatusViewed, cutoff).Scan(&quotes).Error
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		items, err := r.loadItems(ctx, r.db, quotes[i].ID)
		if err != nil {
			return nil, err
		}
		quotes[i].Items = items
	}
	return quotes, nil
}

func (r *QuoteRepository) History(ctx context.Context, id uuid.UUID) ([]model.StatusChange, error) {
	return loadHistory(ctx, r.db, "quote_status_history", id)
}

func (r *QuoteRepository) loadItems(ctx context.Context, db *gorm.DB, quoteID uuid.UUID) ([]model.QuoteItem, error) {
	var items []model.QuoteItem
	err := db.WithContext(ctx).Raw(`
		SELECT id, quote_id, type, description, quantity, unit_price, total_price, display_order
		FROM quote_items
		WHERE quote_id = ?
		ORDER BY display_order ASC
	`, quoteID).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func insertQuote(tx *gorm.DB, q *model.Quote) error {
	return tx.Exec(`
		INSERT INTO quotes (
			id, number, customer_id, service_request_id, family_id, revision,
			parent_quote_id, row_version, status, subtotal, tax_rate, tax_amount,
			discount_amount, total, valid_until, sent_at, viewed_at, responded_at,
			approved_by_name, decline_reason, converted_to_job_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, q.Number, q.CustomerID, q.ServiceRequestID, q.FamilyID, q.Revision,
		q.ParentQuoteID, q.Status, q.Subtotal, q.TaxRate, q.TaxAmount,
		q.DiscountAmount, q.Total, q.ValidUntil, q.SentAt, q.ViewedAt,
		q.RespondedAt, q.ApprovedByName, q.DeclineReason, q.ConvertedToJobID).Error
}

func insertQuoteItems(tx *gorm.DB, q *model.Quote) error {
	for _, it := range q.Items {
		if err := tx.Exec(`
			INSERT INTO quote_items (id, quote_id, type, description, quantity, unit_price, total_price, display_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, q.ID, it.Type, it.Description, it.Quantity, it.UnitPrice, it.TotalPrice, it.DisplayOrder).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertHistory(tx *gorm.DB, table string, change *model.StatusChange) error {
	return tx.Exec(
		`INSERT INTO `+table+` (id, entity_id, status, previous_status, changed_by, notes, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, NOW()))`,
		change.ID, change.EntityID, change.Status, nullIfEmpty(change.PreviousStatus),
		change.ChangedBy, change.Notes, nullTime(change.ChangedAt)).Error
}

func loadHistory(ctx context.Context, db *gorm.DB, table string, entityID uuid.UUID) ([]model.StatusChange, error) {
	var changes []model.StatusChange
	err := db.WithContext(ctx).Raw(
		`SELECT id, entity_id, status, previous_status, changed_by, notes, changed_at
		 FROM `+table+`
		 WHERE entity_id = ?
		 ORDER BY changed_at ASC`, entityID).Scan(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}
