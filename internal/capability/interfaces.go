package capability

import (
	"context"
	"time"
)

// Mail is the inbox surface the cycle observes and acts through.
type Mail interface {
	// ListUnseen returns up to limit unread inbound messages.
	ListUnseen(ctx context.Context, limit int) ([]Email, error)
	Send(ctx context.Context, p SendParams) (SendResult, error)
	Reply(ctx context.Context, p ReplyParams) (SendResult, error)
	Label(ctx context.Context, p LabelParams) error
	Search(ctx context.Context, query string, limit int) ([]Email, error)
	Draft(ctx context.Context, p SendParams) (SendResult, error)
}

// Calendar exposes availability and event creation.
type Calendar interface {
	FreeSlots(ctx context.Context, start, end time.Time, minMinutes int) ([]TimeSlot, error)
	CreateEvent(ctx context.Context, p EventParams) (EventResult, error)
}

// CRM exposes contact lookup and mutation.
type CRM interface {
	GetContact(ctx context.Context, email string) (*Contact, error)
	UpdateContact(ctx context.Context, email, action string, fields map[string]string) error
}

// Alerts raises out-of-band human escalations.
type Alerts interface {
	Escalate(ctx context.Context, channel, message, urgency string) error
}

// Bundle carries every capability the cycle may exercise. It is assembled
// once at startup and passed by constructor; there is no process-wide
// registry to mutate.
type Bundle struct {
	Mail     Mail
	Calendar Calendar
	CRM      CRM
	Alerts   Alerts
}
