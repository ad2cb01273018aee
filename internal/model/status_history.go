package model

import (
	"time"

	"github.com/google/uuid"
)

// StatusChange is one row of the append-only status history kept per
// quote, job and invoice.
type StatusChange struct {
	ID             uuid.UUID
	EntityID       uuid.UUID
	Status         string
	PreviousStatus string
	ChangedBy      *uuid.UUID
	Notes          *string
	ChangedAt      time.Time
}
