// Package notify dispatches fire-and-forget domain events to the
// notification and scheduling collaborators. Dispatch happens after
// commit and is never awaited by the transaction that produced the
// event.
package notify

import "github.com/rs/zerolog"

const (
	EventQuoteSent      = "quote.sent"
	EventQuoteAccepted  = "quote.accepted"
	EventQuoteDeclined  = "quote.declined"
	EventJobCreated     = "job.created"
	EventJobRescheduled = "job.rescheduled"
	EventJobCompleted   = "job.completed"
	EventInvoiceCreated = "invoice.created"
	EventInvoiceSent    = "invoice.sent"
	EventInvoicePaid    = "invoice.paid"
)

type Notifier interface {
	Notify(event string, payload map[string]any)
}

// LogNotifier emits events to the structured log. It stands in for
// the email/SMS and scheduling dispatchers, which consume the same
// event stream out of process.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(event string, payload map[string]any) {
	go func() {
		n.log.Info().Str("event", event).Fields(payload).Msg("domain event")
	}()
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(string, map[string]any) {}
