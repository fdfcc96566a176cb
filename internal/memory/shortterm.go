package memory

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"inboxmind/internal/safety"
)

// SeenItem records a work item observed this session.
type SeenItem struct {
	ItemID  string
	Sender  string
	Subject string
	SeenAt  time.Time
}

// SessionAction is one action taken this session, in order.
type SessionAction struct {
	Timestamp   time.Time
	ToolUsed    string
	Description string
}

// Escalation flags an item for human review this session.
type Escalation struct {
	ItemID    string
	Sender    string
	Reason    string
	FlaggedAt time.Time
}

// Snapshot is a point-in-time view of the session state.
type Snapshot struct {
	ItemsSeen          int
	ActionsTaken       int
	PendingEscalations int
	RecentActions      []SessionAction
}

// ShortTerm is the per-process session memory. It is the sole source of
// truth for the daily-budget check and the cycle report, and it is never
// relied upon across restarts: a restart resets the budget. That is an
// accepted limitation of the in-memory design, not an oversight.
type ShortTerm struct {
	mu          sync.RWMutex
	seen        map[string]SeenItem
	actions     []SessionAction
	escalations []Escalation
	logger      *zap.Logger
}

// NewShortTerm creates an empty session memory.
func NewShortTerm(logger *zap.Logger) *ShortTerm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortTerm{
		seen:   make(map[string]SeenItem),
		logger: logger,
	}
}

// RecordItemSeen registers a work item as observed this session.
func (m *ShortTerm) RecordItemSeen(itemID, sender, subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[itemID] = SeenItem{
		ItemID:  itemID,
		Sender:  sender,
		Subject: subject,
		SeenAt:  time.Now().UTC(),
	}
	m.logger.Debug("session item tracked", zap.String("item", itemID), zap.String("sender", sender))
}

// Seen reports whether the item was already observed this session.
func (m *ShortTerm) Seen(itemID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[itemID]
	return ok
}

// RecordAction appends one action to the session log. Each recorded action
// consumes one unit of the daily budget.
func (m *ShortTerm) RecordAction(toolUsed, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, SessionAction{
		Timestamp:   time.Now().UTC(),
		ToolUsed:    toolUsed,
		Description: description,
	})
	m.logger.Debug("session action recorded",
		zap.String("tool", toolUsed),
		zap.Int("count", len(m.actions)))
}

// ActionCount returns the number of actions taken this session.
func (m *ShortTerm) ActionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.actions)
}

// Counters returns the snapshot the safety gate reads.
func (m *ShortTerm) Counters() safety.CounterSnapshot {
	return safety.CounterSnapshot{ActionsTaken: m.ActionCount()}
}

// RecordEscalation flags an item for human attention.
func (m *ShortTerm) RecordEscalation(itemID, sender, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations = append(m.escalations, Escalation{
		ItemID:    itemID,
		Sender:    sender,
		Reason:    reason,
		FlaggedAt: time.Now().UTC(),
	})
	m.logger.Info("escalation flagged",
		zap.String("item", itemID),
		zap.String("reason", reason))
}

// Escalations returns a copy of the pending escalations.
func (m *ShortTerm) Escalations() []Escalation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Escalation, len(m.escalations))
	copy(out, m.escalations)
	return out
}

// Reset clears all session state. Only an explicit call (or a process
// restart) does this; cycles never reset implicitly.
func (m *ShortTerm) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]SeenItem)
	m.actions = nil
	m.escalations = nil
	m.logger.Info("session memory reset")
}

// SnapshotState returns current totals plus the five most recent actions.
func (m *ShortTerm) SnapshotState() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recent := m.actions
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentCopy := make([]SessionAction, len(recent))
	copy(recentCopy, recent)

	return Snapshot{
		ItemsSeen:          len(m.seen),
		ActionsTaken:       len(m.actions),
		PendingEscalations: len(m.escalations),
		RecentActions:      recentCopy,
	}
}
