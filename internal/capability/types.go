// Package capability defines the closed set of actions the agent can take
// against external collaborators (mail, calendar, CRM, alerts), the value
// types those collaborators exchange, and the interfaces the reasoning
// cycle consumes. The concrete clients live in their own packages; nothing
// here performs I/O.
package capability

import (
	"fmt"
	"time"
)

// EmailAddress is a parsed RFC 5322 mailbox.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func (a EmailAddress) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Email is an inbound message as observed by the cycle.
type Email struct {
	ID       string         `json:"id"`
	ThreadID string         `json:"thread_id"`
	Sender   EmailAddress   `json:"sender"`
	To       []EmailAddress `json:"to,omitempty"`
	Subject  string         `json:"subject"`
	Snippet  string         `json:"snippet,omitempty"`
	Body     string         `json:"body"`
	Labels   []string       `json:"labels,omitempty"`
	Unread   bool           `json:"unread"`
	Received time.Time      `json:"received"`
}

// TimeSlot is a half-open [Start, End) interval of calendar time.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the slot length in whole minutes.
func (s TimeSlot) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// Contact is a CRM contact record.
type Contact struct {
	Email   string   `json:"email"`
	Name    string   `json:"name,omitempty"`
	Company string   `json:"company,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Notes   []string `json:"notes,omitempty"`
}

// SendResult identifies a message accepted by the mail provider.
type SendResult struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id,omitempty"`
	Draft     bool   `json:"draft,omitempty"`
}

// EventResult identifies a created calendar event.
type EventResult struct {
	EventID string `json:"event_id"`
	Link    string `json:"link,omitempty"`
}

// Error wraps a failure from an external collaborator. The cycle records it
// against the current work item and continues; it never aborts a cycle.
type Error struct {
	Capability string // "mail", "calendar", "crm", "alerts"
	Op         string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Capability, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapErr builds a capability Error unless err is nil.
func WrapErr(capName, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Capability: capName, Op: op, Err: err}
}
