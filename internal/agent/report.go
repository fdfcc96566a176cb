package agent

import (
	"sync"
	"time"
)

// ReportEntry is one processed work item in the accumulated report.
type ReportEntry struct {
	Timestamp time.Time
	ItemID    string
	Sender    string
	Subject   string
	Summary   string
	FollowUp  bool
}

// CycleSummary is the headline totals exposed after each cycle.
type CycleSummary struct {
	ItemsSeen          int
	ActionsTaken       int
	EscalationsPending int
}

// Report accumulates processed-item records across cycles. It is owned by
// the scheduler and passed by reference into each cycle; only an explicit
// Reset clears it, never a cycle boundary.
type Report struct {
	mu      sync.Mutex
	entries []ReportEntry
	summary CycleSummary
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{}
}

// Append records one processed item. Summaries are truncated so the report
// stays digestible.
func (r *Report) Append(e ReportEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Summary = truncate(e.Summary, 500)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// SetSummary records the latest end-of-cycle totals.
func (r *Report) SetSummary(s CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = s
}

// Summary returns the most recent cycle totals.
func (r *Report) Summary() CycleSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Entries returns a copy of the accumulated records.
func (r *Report) Entries() []ReportEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReportEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset clears the report. Only the owner calls this; cycles never reset
// implicitly.
func (r *Report) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	r.summary = CycleSummary{}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
