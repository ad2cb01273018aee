package service

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrVersionConflict means another writer changed the row since it
	// was read; the caller should refetch and retry.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAlreadyConverted and ErrAlreadyInvoiced are idempotency
	// guards, not failures: handlers return the existing linked entity.
	ErrAlreadyConverted = errors.New("quote already converted")
	ErrAlreadyInvoiced  = errors.New("job already invoiced")
	// ErrDependencyUnavailable: a collaborator call failed or timed
	// out and the triggering mutation was rolled back. Retryable.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrExpired               = errors.New("quote expired")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrNothingBillable       = errors.New("nothing billable")
)
