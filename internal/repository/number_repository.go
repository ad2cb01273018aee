package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/adilzhm/shopworks-billing/internal/model"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

// NumberRepository issues business numbers from a per-(entity, year)
// counter held in the database. The increment-and-read is one
// statement, so two concurrent callers can never draw the same
// sequence number.
type NumberRepository struct {
	db *gorm.DB
}

func NewNumberRepository(db *gorm.DB) *NumberRepository {
	return &NumberRepository{db: db}
}

func (r *NumberRepository) Next(ctx context.Context, entity model.EntityType) (string, error) {
	year := time.Now().UTC().Year()

	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO number_sequences (entity_type, year, last_seq)
		VALUES (?, ?, 1)
		ON CONFLICT (entity_type, year)
		DO UPDATE SET last_seq = number_sequences.last_seq + 1
		RETURNING last_seq
	`, entity, year).Scan(&seq).Error
	if err != nil {
		return "", fmt.Errorf("%w: number sequence: %v", service.ErrDependencyUnavailable, err)
	}

	return model.FormatNumber(entity, year, seq), nil
}
