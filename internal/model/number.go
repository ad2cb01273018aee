package model

import "fmt"

// EntityType selects the prefix and the counter used when issuing
// human-readable business numbers.
type EntityType string

const (
	EntityQuote   EntityType = "QUOTE"
	EntityJob     EntityType = "JOB"
	EntityInvoice EntityType = "INVOICE"
)

func (e EntityType) Prefix() string {
	switch e {
	case EntityQuote:
		return "QUO"
	case EntityJob:
		return "JOB"
	case EntityInvoice:
		return "INV"
	default:
		return string(e)
	}
}

// FormatNumber renders a business number, e.g. JOB-2024-0156.
func FormatNumber(entity EntityType, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", entity.Prefix(), year, seq)
}
