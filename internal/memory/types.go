// Package memory holds the agent's two memories: an in-process session
// store that resets on restart, and a SQLite-backed durable store shared
// across processes.
package memory

import "time"

// HistoryEntry is one interaction appended to a sender's profile. History is
// append-only: entries are never rewritten, reordered, or dropped.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EmailID   string    `json:"email_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
}

// SenderProfile is the durable per-originator record. Created on first
// contact, updated on every subsequent one, never deleted.
type SenderProfile struct {
	ID              int64          `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name,omitempty"`
	Company         string         `json:"company,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	History         []HistoryEntry `json:"history"`
	LastInteraction time.Time      `json:"last_interaction"`
}

// HasTag reports whether the profile carries the given tag.
func (p *SenderProfile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ProfilePatch describes an upsert. Scalar fields overwrite only when
// non-empty; Tags replaces the tag set only when non-nil; HistoryEntry, when
// present, is appended exactly once.
type ProfilePatch struct {
	Name         string
	Company      string
	Tags         []string
	HistoryEntry *HistoryEntry
}

// ActionRecord is one immutable audit entry. Exactly one record exists per
// attempted action, denials included.
type ActionRecord struct {
	ID          string            `json:"id"`
	EmailFrom   string            `json:"email_from"`
	ActionTaken string            `json:"action_taken"`
	ToolUsed    string            `json:"tool_used"`
	Outcome     string            `json:"outcome"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// FollowUpStatus is the lifecycle state of a follow-up. Transitions are only
// valid out of pending.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
	// FollowUpFailed marks a follow-up whose processing hit a capability
	// error; it is terminal, surfaced by reports rather than retried.
	FollowUpFailed FollowUpStatus = "failed"
)

// Valid reports whether s is a known status.
func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpPending, FollowUpCompleted, FollowUpCancelled, FollowUpFailed:
		return true
	}
	return false
}

// FollowUp is a scheduled reminder tied to a work item.
type FollowUp struct {
	ID        string         `json:"id"`
	EmailID   string         `json:"email_id"`
	Sender    string         `json:"sender"`
	DueTime   time.Time      `json:"due_time"`
	Note      string         `json:"note,omitempty"`
	Status    FollowUpStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
