package agent

import (
	"fmt"
	"strings"
	"time"

	"inboxmind/internal/capability"
	"inboxmind/internal/memory"
)

// DecisionContext is everything the decision procedure sees for one work
// item. It is assembled fresh per item from both memories; nothing else
// reaches the decider.
type DecisionContext struct {
	// Email is set for inbound-message items.
	Email *capability.Email
	// FollowUp is set for due-follow-up items.
	FollowUp *memory.FollowUp

	// Profile is the sender's durable record; nil means first contact.
	Profile *memory.SenderProfile
	// PendingFollowUps are this sender's still-open reminders.
	PendingFollowUps []memory.FollowUp
	// ActionsTakenToday is the session action count at assembly time.
	ActionsTakenToday int
	// Objectives are the operator's active goals.
	Objectives []string
}

// Sender returns the originator address for either item kind.
func (dc DecisionContext) Sender() string {
	if dc.Email != nil {
		return dc.Email.Sender.Email
	}
	if dc.FollowUp != nil {
		return dc.FollowUp.Sender
	}
	return ""
}

// ItemID returns the work-item id for either item kind.
func (dc DecisionContext) ItemID() string {
	if dc.Email != nil {
		return dc.Email.ID
	}
	if dc.FollowUp != nil {
		return dc.FollowUp.EmailID
	}
	return ""
}

// Render produces the prompt text handed to the decision procedure.
func (dc DecisionContext) Render() string {
	var b strings.Builder

	if dc.FollowUp != nil {
		fmt.Fprintf(&b, "FOLLOW-UP DUE\n\n")
		fmt.Fprintf(&b, "Original email ID: %s\n", dc.FollowUp.EmailID)
		fmt.Fprintf(&b, "Sender: %s\n", dc.FollowUp.Sender)
		fmt.Fprintf(&b, "Note: %s\n", dc.FollowUp.Note)
		fmt.Fprintf(&b, "Due: %s\n\n", dc.FollowUp.DueTime.Format(time.RFC3339))
	} else if dc.Email != nil {
		fmt.Fprintf(&b, "NEW EMAIL\n\n")
		fmt.Fprintf(&b, "ID: %s\n", dc.Email.ID)
		fmt.Fprintf(&b, "From: %s\n", dc.Email.Sender)
		fmt.Fprintf(&b, "Subject: %s\n", dc.Email.Subject)
		fmt.Fprintf(&b, "Body:\n%s\n\n", dc.Email.Body)
	}

	if dc.Profile == nil {
		b.WriteString("Sender memory: no known contact (first interaction)\n")
	} else {
		fmt.Fprintf(&b, "Sender memory: %s", dc.Profile.Email)
		if dc.Profile.Name != "" {
			fmt.Fprintf(&b, " (%s", dc.Profile.Name)
			if dc.Profile.Company != "" {
				fmt.Fprintf(&b, ", %s", dc.Profile.Company)
			}
			b.WriteString(")")
		}
		fmt.Fprintf(&b, ", %d prior interactions", len(dc.Profile.History))
		if len(dc.Profile.Tags) > 0 {
			fmt.Fprintf(&b, ", tags: %s", strings.Join(dc.Profile.Tags, ", "))
		}
		b.WriteString("\n")
		for _, h := range recentHistory(dc.Profile.History, 5) {
			fmt.Fprintf(&b, "  - %s %s: %s\n", h.Timestamp.Format("2006-01-02"), h.Action, h.Note)
		}
	}

	if len(dc.PendingFollowUps) > 0 {
		b.WriteString("Pending follow-ups for this sender:\n")
		for _, fu := range dc.PendingFollowUps {
			fmt.Fprintf(&b, "  - due %s: %s\n", fu.DueTime.Format(time.RFC3339), fu.Note)
		}
	}

	fmt.Fprintf(&b, "Actions taken today: %d\n", dc.ActionsTakenToday)

	if len(dc.Objectives) > 0 {
		b.WriteString("Active objectives:\n")
		for i, g := range dc.Objectives {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, g)
		}
	}

	if dc.FollowUp != nil {
		b.WriteString("\nDecide what follow-up action to take: send a follow-up email, " +
			"create a draft, search for the original thread and reply, or escalate " +
			"if the matter seems unresolved.\n")
	} else {
		b.WriteString("\nDecide how to handle this email.\n")
	}

	return b.String()
}

func recentHistory(history []memory.HistoryEntry, n int) []memory.HistoryEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
