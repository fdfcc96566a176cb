package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inboxmind/internal/memory"
)

func seedStore(t *testing.T) *memory.LongTerm {
	t.Helper()
	store, err := memory.NewLongTerm(filepath.Join(t.TempDir(), "report.db"), nil)
	if err != nil {
		t.Fatalf("NewLongTerm: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func record(t *testing.T, store *memory.LongTerm, from, action, tool, outcome string) {
	t.Helper()
	if _, err := store.AppendActionRecord(memory.ActionRecord{
		EmailFrom:   from,
		ActionTaken: action,
		ToolUsed:    tool,
		Outcome:     outcome,
	}); err != nil {
		t.Fatalf("AppendActionRecord: %v", err)
	}
}

func TestDailySummaryClassification(t *testing.T) {
	store := seedStore(t)
	now := time.Now().UTC()

	record(t, store, "a@x.com", "agent_processed_email", "reasoning_cycle", "handled inquiry")
	record(t, store, "a@x.com", "reply_to_email", "mail", "replied in thread t-1")
	record(t, store, "b@x.com", "create_draft", "mail", "created draft d-1")
	record(t, store, "b@x.com", "schedule_followup", "memory", "scheduled follow-up f-1")
	record(t, store, "c@x.com", "label_email", "mail", "labeled message m-1")
	record(t, store, "c@x.com", "reply_to_email", "mail",
		"[SAFETY BLOCK] stop_before_replying_to_obvious_spam: prohibited")
	record(t, store, "d@x.com", "send_email", "mail", "[ERROR] smtp unavailable")
	record(t, store, "d@x.com", "send_escalation_alert", "alerts", "escalation sent")

	if _, err := store.CreateFollowUp("em-1", "a@x.com", now.Add(48*time.Hour), "check in"); err != nil {
		t.Fatalf("CreateFollowUp: %v", err)
	}

	s, err := NewGenerator(store, nil).DailySummary(now)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}

	if s.TotalActions != 8 {
		t.Errorf("TotalActions = %d, want 8", s.TotalActions)
	}
	if s.EmailsProcessed != 1 {
		t.Errorf("EmailsProcessed = %d, want 1", s.EmailsProcessed)
	}
	if s.AutoReplied != 2 {
		t.Errorf("AutoReplied = %d, want 2", s.AutoReplied)
	}
	if s.DraftsCreated != 1 || s.FollowUpsSet != 1 || s.Labeled != 1 || s.Escalated != 1 {
		t.Errorf("breakdown = %+v", s)
	}
	if s.SafetyBlocks != 1 {
		t.Errorf("SafetyBlocks = %d, want 1", s.SafetyBlocks)
	}
	if s.Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Errors)
	}
	if s.UniqueSenders != 4 {
		t.Errorf("UniqueSenders = %d, want 4", s.UniqueSenders)
	}
	if s.PendingFollowUps != 1 {
		t.Errorf("PendingFollowUps = %d, want 1", s.PendingFollowUps)
	}
	if s.ToolBreakdown["mail"] != 5 {
		t.Errorf("mail count = %d, want 5", s.ToolBreakdown["mail"])
	}
}

func TestDailySummaryEmptyDay(t *testing.T) {
	store := seedStore(t)

	s, err := NewGenerator(store, nil).DailySummary(time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	if s.TotalActions != 0 || s.EmailsProcessed != 0 {
		t.Errorf("summary = %+v, want zeroes", s)
	}
}

func TestFormatIncludesAllCounters(t *testing.T) {
	store := seedStore(t)
	record(t, store, "a@x.com", "reply_to_email", "mail", "ok")

	s, err := NewGenerator(store, nil).DailySummary(time.Now().UTC())
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	out := s.Format()
	for _, want := range []string{"auto-replied", "safety blocks", "pending follow-ups", "By tool:", "mail"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted report missing %q:\n%s", want, out)
		}
	}
}
