package capability

import (
	"fmt"
	"strings"
	"time"
)

// ActionType identifies a capability call variant. The set is closed: the
// safety gate classifies actions by switching over these constants, so a new
// action cannot be introduced without also deciding how it is gated.
type ActionType string

const (
	ActionSendEmail    ActionType = "send_email"
	ActionReplyToEmail ActionType = "reply_to_email"
	ActionCreateDraft  ActionType = "create_draft"
	ActionReadEmails   ActionType = "read_emails"
	ActionSearchEmails ActionType = "search_emails"
	ActionLabelEmail   ActionType = "label_email"

	// Destructive variants. None of these have an executor; they exist so
	// the gate can name what it refuses.
	ActionDeleteEmail      ActionType = "delete_email"
	ActionDeletePermanent  ActionType = "delete_email_permanently"
	ActionTrashPermanent   ActionType = "trash_email_permanently"
	ActionPurge            ActionType = "purge"
	ActionExpunge          ActionType = "expunge"

	ActionCheckAvailability ActionType = "check_calendar_availability"
	ActionCreateEvent       ActionType = "create_calendar_event"
	ActionScheduleFollowUp  ActionType = "schedule_followup"

	ActionGetCRMContact ActionType = "get_crm_contact"
	ActionUpdateCRM     ActionType = "update_crm"

	ActionEscalationAlert ActionType = "send_escalation_alert"
)

// SendParams addresses a new outbound message. Recipients may be supplied
// either as a delimited string (To) or an explicit list (ToList); the list
// form wins when both are present.
type SendParams struct {
	To       string   `json:"to,omitempty"`
	ToList   []string `json:"to_list,omitempty"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"thread_id,omitempty"`
}

// ReplyParams answers an existing message. Original carries the message being
// replied to so the gate can classify it independently of the decision
// procedure's claims about it.
type ReplyParams struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id,omitempty"`
	Body      string `json:"body"`
	Original  *Email `json:"original,omitempty"`
}

// ReadParams bounds an inbox fetch.
type ReadParams struct {
	MaxResults int    `json:"max_results,omitempty"`
	Filter     string `json:"filter,omitempty"`
}

// SearchParams runs a provider-syntax mail search.
type SearchParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// LabelParams adds or removes labels on a message.
type LabelParams struct {
	MessageID    string   `json:"message_id"`
	AddLabels    []string `json:"add_labels,omitempty"`
	RemoveLabels []string `json:"remove_labels,omitempty"`
	Archive      bool     `json:"archive,omitempty"`
}

// AvailabilityParams asks for free calendar slots.
type AvailabilityParams struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MinMinutes int       `json:"min_minutes,omitempty"`
}

// EventParams creates a calendar event.
type EventParams struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Description string    `json:"description,omitempty"`
}

// FollowUpParams schedules a follow-up reminder for a work item.
type FollowUpParams struct {
	EmailID string    `json:"email_id"`
	Sender  string    `json:"sender"`
	DueTime time.Time `json:"due_time"`
	Note    string    `json:"note,omitempty"`
}

// ContactParams looks up a CRM contact.
type ContactParams struct {
	Email string `json:"email"`
}

// CRMUpdateParams mutates a CRM contact. Action is the CRM-level verb
// (add_note, add_tag, update_fields), not a capability ActionType.
type CRMUpdateParams struct {
	Email  string            `json:"email"`
	Action string            `json:"action"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AlertParams raises a human escalation.
type AlertParams struct {
	Channel string `json:"channel,omitempty"`
	Message string `json:"message"`
	Urgency string `json:"urgency,omitempty"`
}

// Call is the tagged union of every capability request the decision procedure
// can propose. Type selects the variant; exactly one of the pointer fields is
// populated. Every Call passes through the safety gate before execution.
type Call struct {
	Type ActionType `json:"type"`

	Send         *SendParams         `json:"send,omitempty"`
	Reply        *ReplyParams        `json:"reply,omitempty"`
	Draft        *SendParams         `json:"draft,omitempty"`
	Read         *ReadParams         `json:"read,omitempty"`
	Search       *SearchParams       `json:"search,omitempty"`
	Label        *LabelParams        `json:"label,omitempty"`
	Availability *AvailabilityParams `json:"availability,omitempty"`
	Event        *EventParams        `json:"event,omitempty"`
	FollowUp     *FollowUpParams     `json:"follow_up,omitempty"`
	Contact      *ContactParams      `json:"contact,omitempty"`
	CRMUpdate    *CRMUpdateParams    `json:"crm_update,omitempty"`
	Alert        *AlertParams        `json:"alert,omitempty"`
}

// destructiveActions is the fixed set of permanently-deleting action names.
// The gate denies all of them unconditionally.
var destructiveActions = map[ActionType]bool{
	ActionDeleteEmail:     true,
	ActionDeletePermanent: true,
	ActionTrashPermanent:  true,
	ActionPurge:           true,
	ActionExpunge:         true,
}

// IsDestructive reports whether the call names a permanent-deletion action.
func (c Call) IsDestructive() bool {
	return destructiveActions[c.Type]
}

// IsOutboundContent reports whether the call would place agent-authored text
// in front of an external recipient (send, reply, or draft).
func (c Call) IsOutboundContent() bool {
	switch c.Type {
	case ActionSendEmail, ActionReplyToEmail, ActionCreateDraft:
		return true
	}
	return false
}

// splitRecipients resolves a delimited recipient string into addresses.
// Commas and semicolons both delimit; blanks are dropped.
func splitRecipients(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Recipients resolves the recipient set for send/draft calls, honoring both
// the list and delimited-string encodings. Nil for every other variant.
func (c Call) Recipients() []string {
	var p *SendParams
	switch c.Type {
	case ActionSendEmail:
		p = c.Send
	case ActionCreateDraft:
		p = c.Draft
	default:
		return nil
	}
	if p == nil {
		return nil
	}
	if len(p.ToList) > 0 {
		out := make([]string, 0, len(p.ToList))
		for _, addr := range p.ToList {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
		return out
	}
	return splitRecipients(p.To)
}

// OutboundText returns the subject and body of an outbound-content call
// joined for pattern scanning, and "" for everything else.
func (c Call) OutboundText() string {
	switch c.Type {
	case ActionSendEmail:
		if c.Send != nil {
			return c.Send.Subject + " " + c.Send.Body
		}
	case ActionCreateDraft:
		if c.Draft != nil {
			return c.Draft.Subject + " " + c.Draft.Body
		}
	case ActionReplyToEmail:
		if c.Reply != nil {
			return c.Reply.Body
		}
	}
	return ""
}

// OutboundBody returns only the body of an outbound-content call.
func (c Call) OutboundBody() string {
	switch c.Type {
	case ActionSendEmail:
		if c.Send != nil {
			return c.Send.Body
		}
	case ActionCreateDraft:
		if c.Draft != nil {
			return c.Draft.Body
		}
	case ActionReplyToEmail:
		if c.Reply != nil {
			return c.Reply.Body
		}
	}
	return ""
}

// OriginalContext returns the caller-supplied message a reply responds to.
func (c Call) OriginalContext() *Email {
	if c.Type == ActionReplyToEmail && c.Reply != nil {
		return c.Reply.Original
	}
	return nil
}

func (c Call) String() string {
	return string(c.Type)
}

// Validate checks that the params variant matching Type is populated.
func (c Call) Validate() error {
	var ok bool
	switch c.Type {
	case ActionSendEmail:
		ok = c.Send != nil
	case ActionReplyToEmail:
		ok = c.Reply != nil
	case ActionCreateDraft:
		ok = c.Draft != nil
	case ActionReadEmails:
		ok = true // params optional
	case ActionSearchEmails:
		ok = c.Search != nil
	case ActionLabelEmail:
		ok = c.Label != nil
	case ActionCheckAvailability:
		ok = c.Availability != nil
	case ActionCreateEvent:
		ok = c.Event != nil
	case ActionScheduleFollowUp:
		ok = c.FollowUp != nil
	case ActionGetCRMContact:
		ok = c.Contact != nil
	case ActionUpdateCRM:
		ok = c.CRMUpdate != nil
	case ActionEscalationAlert:
		ok = c.Alert != nil
	case ActionDeleteEmail, ActionDeletePermanent, ActionTrashPermanent, ActionPurge, ActionExpunge:
		ok = true // blocked before params would matter
	default:
		return fmt.Errorf("unknown action type %q", c.Type)
	}
	if !ok {
		return fmt.Errorf("action %q missing its parameter variant", c.Type)
	}
	return nil
}
