package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inboxmind/internal/capability"
	"inboxmind/internal/memory"
	"inboxmind/internal/safety"
)

// ===== FAKES =====

type fakeMail struct {
	unseen  []capability.Email
	sent    []capability.SendParams
	replies []capability.ReplyParams
	drafts  []capability.SendParams
	labels  []capability.LabelParams
	sendErr error
}

func (f *fakeMail) ListUnseen(ctx context.Context, limit int) ([]capability.Email, error) {
	if limit < len(f.unseen) {
		return f.unseen[:limit], nil
	}
	return f.unseen, nil
}

func (f *fakeMail) Send(ctx context.Context, p capability.SendParams) (capability.SendResult, error) {
	if f.sendErr != nil {
		return capability.SendResult{}, f.sendErr
	}
	f.sent = append(f.sent, p)
	return capability.SendResult{MessageID: "msg-sent-1"}, nil
}

func (f *fakeMail) Reply(ctx context.Context, p capability.ReplyParams) (capability.SendResult, error) {
	if f.sendErr != nil {
		return capability.SendResult{}, f.sendErr
	}
	f.replies = append(f.replies, p)
	return capability.SendResult{MessageID: "msg-reply-1", ThreadID: p.ThreadID}, nil
}

func (f *fakeMail) Label(ctx context.Context, p capability.LabelParams) error {
	f.labels = append(f.labels, p)
	return nil
}

func (f *fakeMail) Search(ctx context.Context, query string, limit int) ([]capability.Email, error) {
	return nil, nil
}

func (f *fakeMail) Draft(ctx context.Context, p capability.SendParams) (capability.SendResult, error) {
	f.drafts = append(f.drafts, p)
	return capability.SendResult{MessageID: "draft-1"}, nil
}

type fakeAlerts struct {
	messages []string
}

func (f *fakeAlerts) Escalate(ctx context.Context, channel, message, urgency string) error {
	f.messages = append(f.messages, message)
	return nil
}

// scriptedDecider returns a canned decision per item ID.
type scriptedDecider struct {
	decisions map[string]Decision
	errs      map[string]error
	calls     int
}

func (d *scriptedDecider) Decide(ctx context.Context, dc DecisionContext) (Decision, error) {
	d.calls++
	id := dc.ItemID()
	if err, ok := d.errs[id]; ok {
		return Decision{}, err
	}
	dec, ok := d.decisions[id]
	if !ok {
		return Decision{Summary: "no action needed"}, nil
	}
	return dec, nil
}

// ===== HARNESS =====

type harness struct {
	cycle  *Cycle
	report *Report
	mail   *fakeMail
	alerts *fakeAlerts
	short  *memory.ShortTerm
	long   *memory.LongTerm
}

func newHarness(t *testing.T, mail *fakeMail, decider Decider) *harness {
	t.Helper()
	long, err := memory.NewLongTerm(filepath.Join(t.TempDir(), "mind.db"), nil)
	if err != nil {
		t.Fatalf("NewLongTerm: %v", err)
	}
	t.Cleanup(func() { long.Close() })

	short := memory.NewShortTerm(nil)
	alerts := &fakeAlerts{}
	bundle := capability.Bundle{Mail: mail, Alerts: alerts}
	gate := safety.NewGate(safety.Limits{})
	cycle := NewCycle(gate, bundle, decider, short, long,
		func() []string { return []string{"respond to inbound inquiries promptly"} },
		CycleConfig{}, nil)

	return &harness{
		cycle:  cycle,
		report: NewReport(),
		mail:   mail,
		alerts: alerts,
		short:  short,
		long:   long,
	}
}

func inboundEmail(id, from, subject, body string) capability.Email {
	return capability.Email{
		ID:       id,
		ThreadID: "thread-" + id,
		Sender:   capability.EmailAddress{Email: from},
		Subject:  subject,
		Body:     body,
		Unread:   true,
		Received: time.Now().UTC(),
	}
}

// ===== TESTS =====

func TestCycleRepliesAndSchedulesFollowUp(t *testing.T) {
	email := inboundEmail("em-1", "dana@vertexsolutions.com",
		"Interested in your enterprise plan",
		"Hi, we are evaluating vendors and would like a demo of the enterprise plan.")
	due := time.Now().UTC().Add(48 * time.Hour)

	decider := &scriptedDecider{decisions: map[string]Decision{
		"em-1": {
			Summary: "legitimate sales inquiry, replying and scheduling a follow-up",
			Calls: []capability.Call{
				{Type: capability.ActionReplyToEmail, Reply: &capability.ReplyParams{
					ThreadID: "thread-em-1", Body: "Happy to set up a demo. Does Thursday work?",
				}},
				{Type: capability.ActionScheduleFollowUp, FollowUp: &capability.FollowUpParams{
					EmailID: "em-1", Sender: "dana@vertexsolutions.com", DueTime: due, Note: "demo follow-up",
				}},
			},
		},
	}}
	h := newHarness(t, &fakeMail{unseen: []capability.Email{email}}, decider)

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.mail.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(h.mail.replies))
	}
	if got := h.short.ActionCount(); got != 2 {
		t.Errorf("ActionCount = %d, want 2", got)
	}

	pending, err := h.long.PendingFollowUpsForSender("dana@vertexsolutions.com")
	if err != nil {
		t.Fatalf("PendingFollowUpsForSender: %v", err)
	}
	if len(pending) != 1 || pending[0].Note != "demo follow-up" {
		t.Fatalf("pending follow-ups = %+v, want one demo follow-up", pending)
	}

	profile, err := h.long.GetProfile("dana@vertexsolutions.com")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(profile.History) != 1 || profile.History[0].Action != "processed" {
		t.Errorf("history = %+v, want one processed entry", profile.History)
	}

	// Two per-call records plus the per-item processed record.
	records, err := h.long.ActionsForSender("dana@vertexsolutions.com", 10)
	if err != nil {
		t.Fatalf("ActionsForSender: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("action records = %d, want 3", len(records))
	}

	entries := h.report.Entries()
	if len(entries) != 1 {
		t.Fatalf("report entries = %d, want 1", len(entries))
	}
	if !strings.Contains(entries[0].Summary, "legitimate sales inquiry") {
		t.Errorf("report summary = %q", entries[0].Summary)
	}
	if s := h.report.Summary(); s.ItemsSeen != 1 || s.ActionsTaken != 2 {
		t.Errorf("cycle summary = %+v", s)
	}
}

func TestCycleBlocksReplyToSpam(t *testing.T) {
	email := inboundEmail("em-spam", "winner@lottery-intl.biz",
		"You have won $1,000,000!!!",
		"Congratulations, claim your prize now. Act now, limited time offer. This is not a scam.")

	decider := &scriptedDecider{decisions: map[string]Decision{
		"em-spam": {
			Summary: "replying with bank details request",
			Calls: []capability.Call{
				{Type: capability.ActionReplyToEmail, Reply: &capability.ReplyParams{
					ThreadID: "thread-em-spam",
					Body:     "Wonderful news, what do you need from me?",
					Original: &email,
				}},
			},
		},
	}}
	h := newHarness(t, &fakeMail{unseen: []capability.Email{email}}, decider)

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.mail.replies) != 0 {
		t.Fatalf("replies = %d, want 0", len(h.mail.replies))
	}
	// A denied call consumes no budget.
	if got := h.short.ActionCount(); got != 0 {
		t.Errorf("ActionCount = %d, want 0", got)
	}
	escs := h.short.Escalations()
	if len(escs) != 1 {
		t.Fatalf("escalations = %d, want 1", len(escs))
	}
	if !strings.Contains(escs[0].Reason, safety.RuleNoSpamReply) {
		t.Errorf("escalation reason = %q", escs[0].Reason)
	}

	records, err := h.long.ActionsForSender("winner@lottery-intl.biz", 10)
	if err != nil {
		t.Fatalf("ActionsForSender: %v", err)
	}
	var blocked bool
	for _, r := range records {
		if strings.HasPrefix(r.Outcome, "[SAFETY BLOCK]") {
			blocked = true
		}
	}
	if !blocked {
		t.Errorf("no [SAFETY BLOCK] record found in %+v", records)
	}
}

func TestCycleAbortsWhenBudgetExhausted(t *testing.T) {
	emails := []capability.Email{
		inboundEmail("em-a", "a@example.com", "question", "first"),
		inboundEmail("em-b", "b@example.com", "question", "second"),
	}
	decider := &scriptedDecider{}
	h := newHarness(t, &fakeMail{unseen: emails}, decider)

	for i := 0; i < safety.DefaultLimits().DailyActionLimit; i++ {
		h.short.RecordAction("send_email", "warmup")
	}

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if decider.calls != 0 {
		t.Errorf("decider called %d times, want 0", decider.calls)
	}
	escs := h.short.Escalations()
	if len(escs) != 1 {
		t.Fatalf("escalations = %d, want 1", len(escs))
	}
	if !strings.Contains(escs[0].Reason, "2 remaining items skipped") {
		t.Errorf("escalation reason = %q", escs[0].Reason)
	}
}

func TestCycleRecordsCapabilityError(t *testing.T) {
	email := inboundEmail("em-1", "carol@example.com", "hello", "please reply")
	decider := &scriptedDecider{decisions: map[string]Decision{
		"em-1": {
			Summary: "replying",
			Calls: []capability.Call{
				{Type: capability.ActionReplyToEmail, Reply: &capability.ReplyParams{
					ThreadID: "thread-em-1", Body: "hi",
				}},
			},
		},
	}}
	h := newHarness(t, &fakeMail{unseen: []capability.Email{email}, sendErr: errors.New("smtp unavailable")}, decider)

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The attempt consumed budget even though the provider failed.
	if got := h.short.ActionCount(); got != 1 {
		t.Errorf("ActionCount = %d, want 1", got)
	}
	records, err := h.long.ActionsForSender("carol@example.com", 10)
	if err != nil {
		t.Fatalf("ActionsForSender: %v", err)
	}
	var errored bool
	for _, r := range records {
		if strings.HasPrefix(r.Outcome, "[ERROR]") && strings.Contains(r.Outcome, "smtp unavailable") {
			errored = true
		}
	}
	if !errored {
		t.Errorf("no [ERROR] record found in %+v", records)
	}
}

func TestCycleDeciderFailureStillRemembered(t *testing.T) {
	email := inboundEmail("em-1", "dave@example.com", "hello", "anything")
	decider := &scriptedDecider{errs: map[string]error{
		"em-1": errors.New("model overloaded"),
	}}
	h := newHarness(t, &fakeMail{unseen: []capability.Email{email}}, decider)

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	profile, err := h.long.GetProfile("dave@example.com")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(profile.History) != 1 {
		t.Fatalf("history = %+v, want one entry", profile.History)
	}
	if !strings.HasPrefix(profile.History[0].Note, "[ERROR]") {
		t.Errorf("history note = %q, want [ERROR] prefix", profile.History[0].Note)
	}

	entries := h.report.Entries()
	if len(entries) != 1 || !strings.Contains(entries[0].Summary, "model overloaded") {
		t.Errorf("report entries = %+v", entries)
	}
}

func TestCycleCompletesDueFollowUp(t *testing.T) {
	decider := &scriptedDecider{decisions: map[string]Decision{
		"em-orig": {
			Summary: "nudging the prospect",
			Calls: []capability.Call{
				{Type: capability.ActionSendEmail, Send: &capability.SendParams{
					To: "lead@example.com", Subject: "Checking in", Body: "Any update on the demo?",
				}},
			},
		},
	}}
	h := newHarness(t, &fakeMail{}, decider)

	fu, err := h.long.CreateFollowUp("em-orig", "lead@example.com",
		time.Now().UTC().Add(-time.Hour), "check on demo")
	if err != nil {
		t.Fatalf("CreateFollowUp: %v", err)
	}

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(h.mail.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(h.mail.sent))
	}
	pending, err := h.long.ListPendingFollowUps()
	if err != nil {
		t.Fatalf("ListPendingFollowUps: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending follow-ups = %+v, want none (id %s consumed)", pending, fu.ID)
	}

	entries := h.report.Entries()
	if len(entries) != 1 || !entries[0].FollowUp {
		t.Fatalf("report entries = %+v, want one follow-up entry", entries)
	}
}

func TestCycleMarksFollowUpFailedOnCapabilityError(t *testing.T) {
	decider := &scriptedDecider{decisions: map[string]Decision{
		"em-orig": {
			Summary: "nudging the prospect",
			Calls: []capability.Call{
				{Type: capability.ActionSendEmail, Send: &capability.SendParams{
					To: "lead@example.com", Subject: "Checking in", Body: "Any update?",
				}},
			},
		},
	}}
	h := newHarness(t, &fakeMail{sendErr: errors.New("quota exceeded")}, decider)

	fu, err := h.long.CreateFollowUp("em-orig", "lead@example.com",
		time.Now().UTC().Add(-time.Hour), "check on demo")
	if err != nil {
		t.Fatalf("CreateFollowUp: %v", err)
	}

	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending, err := h.long.ListPendingFollowUps()
	if err != nil {
		t.Fatalf("ListPendingFollowUps: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending follow-ups = %+v, want none", pending)
	}
	// It must not run again: re-running the cycle sees no due follow-ups.
	h.mail.sendErr = nil
	if err := h.cycle.Run(context.Background(), h.report); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(h.mail.sent) != 0 {
		t.Fatalf("failed follow-up %s was retried", fu.ID)
	}
}

func TestCycleObserveFailureSurfaces(t *testing.T) {
	h := newHarness(t, &fakeMail{}, &scriptedDecider{})
	h.long.Close()

	// Mail listing succeeds but the follow-up query cannot reach the store.
	err := h.cycle.Run(context.Background(), h.report)
	if err == nil {
		t.Fatal("Run returned nil, want observe error")
	}
}
