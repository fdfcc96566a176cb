// Package report summarizes a day of agent activity from the durable
// action log.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"inboxmind/internal/memory"
)

// DailySummary aggregates one UTC day of the action log.
type DailySummary struct {
	Date             string         `json:"date"`
	GeneratedAt      time.Time      `json:"generated_at"`
	EmailsProcessed  int            `json:"emails_processed"`
	AutoReplied      int            `json:"auto_replied"`
	Escalated        int            `json:"escalated"`
	SafetyBlocks     int            `json:"safety_blocks"`
	FollowUpsSet     int            `json:"followups_set"`
	DraftsCreated    int            `json:"drafts_created"`
	Labeled          int            `json:"labeled"`
	Errors           int            `json:"errors"`
	TotalActions     int            `json:"total_actions"`
	UniqueSenders    int            `json:"unique_senders"`
	PendingFollowUps int            `json:"pending_followups"`
	ToolBreakdown    map[string]int `json:"tool_breakdown"`
}

// Generator reads the store and produces daily summaries.
type Generator struct {
	store  *memory.LongTerm
	logger *zap.Logger
}

// NewGenerator builds a report generator over the durable store.
func NewGenerator(store *memory.LongTerm, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, logger: logger}
}

// DailySummary classifies every action-log row for the UTC day containing
// the given time.
func (g *Generator) DailySummary(day time.Time) (*DailySummary, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows, err := g.store.ActionsBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("load action log: %w", err)
	}
	pending, err := g.store.ListPendingFollowUps()
	if err != nil {
		return nil, fmt.Errorf("load pending follow-ups: %w", err)
	}

	s := &DailySummary{
		Date:             start.Format("2006-01-02"),
		GeneratedAt:      time.Now().UTC(),
		TotalActions:     len(rows),
		PendingFollowUps: len(pending),
		ToolBreakdown:    make(map[string]int),
	}

	senders := make(map[string]struct{})
	for _, r := range rows {
		s.ToolBreakdown[r.ToolUsed]++
		if r.EmailFrom != "" {
			senders[r.EmailFrom] = struct{}{}
		}

		action := strings.ToLower(r.ActionTaken)
		switch {
		case action == "agent_processed_email":
			s.EmailsProcessed++
		case strings.Contains(action, "reply"):
			s.AutoReplied++
		case strings.Contains(action, "draft"):
			s.DraftsCreated++
		case strings.Contains(action, "followup") || strings.Contains(action, "follow_up"):
			s.FollowUpsSet++
		case strings.Contains(action, "label"):
			s.Labeled++
		case strings.Contains(action, "escalat"):
			s.Escalated++
		}

		if strings.HasPrefix(r.Outcome, "[SAFETY BLOCK]") {
			s.SafetyBlocks++
		}
		if strings.HasPrefix(r.Outcome, "[ERROR]") {
			s.Errors++
		}
	}
	s.UniqueSenders = len(senders)

	g.logger.Info("daily summary generated",
		zap.String("date", s.Date),
		zap.Int("total_actions", s.TotalActions),
		zap.Int("emails_processed", s.EmailsProcessed))
	return s, nil
}

// Format renders the summary as plain text for the report subcommand.
func (s *DailySummary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily report for %s\n", s.Date)
	fmt.Fprintf(&b, "generated %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "  emails processed   %d\n", s.EmailsProcessed)
	fmt.Fprintf(&b, "  auto-replied       %d\n", s.AutoReplied)
	fmt.Fprintf(&b, "  drafts created     %d\n", s.DraftsCreated)
	fmt.Fprintf(&b, "  follow-ups set     %d\n", s.FollowUpsSet)
	fmt.Fprintf(&b, "  labeled            %d\n", s.Labeled)
	fmt.Fprintf(&b, "  escalated          %d\n", s.Escalated)
	fmt.Fprintf(&b, "  safety blocks      %d\n", s.SafetyBlocks)
	fmt.Fprintf(&b, "  errors             %d\n\n", s.Errors)

	fmt.Fprintf(&b, "  total actions      %d\n", s.TotalActions)
	fmt.Fprintf(&b, "  unique senders     %d\n", s.UniqueSenders)
	fmt.Fprintf(&b, "  pending follow-ups %d\n", s.PendingFollowUps)

	if len(s.ToolBreakdown) > 0 {
		b.WriteString("\nBy tool:\n")
		tools := make([]string, 0, len(s.ToolBreakdown))
		for t := range s.ToolBreakdown {
			tools = append(tools, t)
		}
		sort.Slice(tools, func(i, j int) bool {
			if s.ToolBreakdown[tools[i]] != s.ToolBreakdown[tools[j]] {
				return s.ToolBreakdown[tools[i]] > s.ToolBreakdown[tools[j]]
			}
			return tools[i] < tools[j]
		})
		for _, t := range tools {
			fmt.Fprintf(&b, "  %-18s %d\n", t, s.ToolBreakdown[t])
		}
	}
	return b.String()
}
