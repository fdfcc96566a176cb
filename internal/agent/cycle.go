package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inboxmind/internal/capability"
	"inboxmind/internal/memory"
	"inboxmind/internal/safety"
)

// Outcome prefixes distinguishing failure modes in reports. Downstream
// consumers key off these, so they are part of the contract.
const (
	outcomeSafetyBlock = "[SAFETY BLOCK] "
	outcomeError       = "[ERROR] "
)

// CycleConfig bounds one cycle's work.
type CycleConfig struct {
	// FetchLimit caps the unseen-mail page pulled per cycle.
	FetchLimit int
	// HistoryNoteLimit truncates the note stored on sender history.
	HistoryNoteLimit int
	// OutcomeLimit truncates the outcome stored on action records.
	OutcomeLimit int
}

// DefaultCycleConfig returns production bounds.
func DefaultCycleConfig() CycleConfig {
	return CycleConfig{
		FetchLimit:       20,
		HistoryNoteLimit: 500,
		OutcomeLimit:     1000,
	}
}

// Cycle runs one observe/think/act/remember pass per invocation. Work is
// strictly sequential within a cycle: budget checks, gate verdicts, and
// memory appends stay ordered and auditable, and the budget cannot be
// double-spent. The decider call and capability invocations are the only
// suspension points.
type Cycle struct {
	gate       *safety.Gate
	caps       capability.Bundle
	decider    Decider
	short      *memory.ShortTerm
	long       *memory.LongTerm
	objectives func() []string
	cfg        CycleConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewCycle wires a cycle. The capability bundle is passed here, by
// constructor, and never mutated afterwards.
func NewCycle(
	gate *safety.Gate,
	caps capability.Bundle,
	decider Decider,
	short *memory.ShortTerm,
	long *memory.LongTerm,
	objectives func() []string,
	cfg CycleConfig,
	logger *zap.Logger,
) *Cycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if objectives == nil {
		objectives = func() []string { return nil }
	}
	def := DefaultCycleConfig()
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = def.FetchLimit
	}
	if cfg.HistoryNoteLimit <= 0 {
		cfg.HistoryNoteLimit = def.HistoryNoteLimit
	}
	if cfg.OutcomeLimit <= 0 {
		cfg.OutcomeLimit = def.OutcomeLimit
	}
	return &Cycle{
		gate:       gate,
		caps:       caps,
		decider:    decider,
		short:      short,
		long:       long,
		objectives: objectives,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full cycle against the given report. Item-level failures
// are absorbed into item outcomes; only observation failures (the store or
// mail listing being unreachable) surface as a cycle error, and the caller's
// loop absorbs those too.
func (c *Cycle) Run(ctx context.Context, report *Report) error {
	start := c.now()

	// OBSERVE
	emails, err := c.caps.Mail.ListUnseen(ctx, c.cfg.FetchLimit)
	if err != nil {
		return fmt.Errorf("observe: %w", capability.WrapErr("mail", "list_unseen", err))
	}
	due, err := c.long.DueFollowUps(c.now())
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	c.logger.Info("cycle observed",
		zap.Int("emails", len(emails)),
		zap.Int("due_follow_ups", len(due)))

	// THINK + ACT + REMEMBER, per item, budget pre-checked before each.
	aborted := false
	for i, email := range emails {
		if c.gate.BudgetExhausted(c.short.Counters()) {
			c.recordBudgetAbort(len(emails) - i + len(due))
			aborted = true
			break
		}
		c.processEmail(ctx, email, report)
	}
	if !aborted {
		for i, fu := range due {
			if c.gate.BudgetExhausted(c.short.Counters()) {
				c.recordBudgetAbort(len(due) - i)
				break
			}
			c.processFollowUp(ctx, fu, report)
		}
	}

	// REPORT
	snap := c.short.SnapshotState()
	report.SetSummary(CycleSummary{
		ItemsSeen:          snap.ItemsSeen,
		ActionsTaken:       snap.ActionsTaken,
		EscalationsPending: snap.PendingEscalations,
	})
	c.logger.Info("cycle complete",
		zap.Int("items_seen", snap.ItemsSeen),
		zap.Int("actions_taken", snap.ActionsTaken),
		zap.Int("escalations", snap.PendingEscalations),
		zap.Duration("elapsed", c.now().Sub(start)))
	return nil
}

// recordBudgetAbort records exactly one escalation for the items skipped
// when the budget runs out mid-cycle. The cycle itself does not fail.
func (c *Cycle) recordBudgetAbort(skipped int) {
	c.logger.Warn("daily action limit reached, aborting remaining items",
		zap.Int("skipped", skipped))
	c.short.RecordEscalation("SYSTEM", "",
		fmt.Sprintf("daily action limit exceeded; %d remaining items skipped this cycle", skipped))
}

// processEmail handles one inbound message end to end.
func (c *Cycle) processEmail(ctx context.Context, email capability.Email, report *Report) {
	sender := email.Sender.Email
	c.short.RecordItemSeen(email.ID, sender, email.Subject)

	dc := c.buildEmailContext(email)
	outcome, _ := c.think(ctx, dc, email.ID, sender)

	// REMEMBER: one history entry and one processed-item record, always,
	// whatever the outcome was.
	c.remember(sender, memory.HistoryEntry{
		Timestamp: c.now(),
		EmailID:   email.ID,
		Subject:   email.Subject,
		Action:    "processed",
		Note:      truncate(outcome, c.cfg.HistoryNoteLimit),
	}, memory.ActionRecord{
		EmailFrom:   sender,
		ActionTaken: "agent_processed_email",
		ToolUsed:    "reasoning_cycle",
		Outcome:     truncate(outcome, c.cfg.OutcomeLimit),
		Metadata:    map[string]string{"email_id": email.ID, "subject": email.Subject},
	})

	report.Append(ReportEntry{
		Timestamp: c.now(),
		ItemID:    email.ID,
		Sender:    sender,
		Subject:   email.Subject,
		Summary:   outcome,
	})
}

// processFollowUp handles one due follow-up and consumes it: the status
// leaves pending exactly once, to completed normally or failed when a
// capability error interrupted the follow-up's actions.
func (c *Cycle) processFollowUp(ctx context.Context, fu memory.FollowUp, report *Report) {
	c.short.RecordItemSeen(fu.EmailID, fu.Sender, "follow-up: "+fu.Note)

	dc := c.buildFollowUpContext(fu)
	outcome, capFailed := c.think(ctx, dc, fu.EmailID, fu.Sender)

	status := memory.FollowUpCompleted
	if capFailed {
		status = memory.FollowUpFailed
	}
	if err := c.long.TransitionFollowUp(fu.ID, status); err != nil {
		// Another process may have consumed it; the audit record below
		// still captures what this process did.
		c.logger.Warn("follow-up transition failed",
			zap.String("id", fu.ID),
			zap.Error(err))
	}

	c.remember(fu.Sender, memory.HistoryEntry{
		Timestamp: c.now(),
		EmailID:   fu.EmailID,
		Action:    "follow_up_processed",
		Note:      truncate(outcome, c.cfg.HistoryNoteLimit),
	}, memory.ActionRecord{
		EmailFrom:   fu.Sender,
		ActionTaken: "agent_processed_follow_up",
		ToolUsed:    "reasoning_cycle",
		Outcome:     truncate(outcome, c.cfg.OutcomeLimit),
		Metadata:    map[string]string{"follow_up_id": fu.ID, "email_id": fu.EmailID, "status": string(status)},
	})

	report.Append(ReportEntry{
		Timestamp: c.now(),
		ItemID:    fu.EmailID,
		Sender:    fu.Sender,
		Subject:   fu.Note,
		Summary:   outcome,
		FollowUp:  true,
	})
}

// think runs the decision procedure and executes the gated actions.
// Returns the item's outcome text and whether a capability error occurred.
func (c *Cycle) think(ctx context.Context, dc DecisionContext, itemID, sender string) (string, bool) {
	decision, err := c.decider.Decide(ctx, dc)
	if err != nil {
		var verr *safety.ViolationError
		if errors.As(err, &verr) {
			c.short.RecordEscalation(itemID, sender, verr.Error())
			return outcomeSafetyBlock + verr.Error(), false
		}
		c.logger.Error("decision procedure failed",
			zap.String("item", itemID),
			zap.Error(err))
		return outcomeError + "failed to process: " + err.Error(), false
	}

	outcome := decision.Summary
	capFailed := false
	for _, call := range decision.Calls {
		result, failed := c.act(ctx, call, itemID, sender)
		capFailed = capFailed || failed
		outcome += "\n" + string(call.Type) + ": " + result
	}
	return outcome, capFailed
}

// act passes one proposed call through the gate and, if allowed, executes
// it. Every attempt, denials included, produces exactly one action record.
// Nothing reaches a capability without an allowing verdict.
func (c *Cycle) act(ctx context.Context, call capability.Call, itemID, sender string) (result string, capFailed bool) {
	tool := toolName(call.Type)

	defer func() {
		c.appendRecord(memory.ActionRecord{
			EmailFrom:   sender,
			ActionTaken: string(call.Type),
			ToolUsed:    tool,
			Outcome:     truncate(result, c.cfg.OutcomeLimit),
			Metadata:    map[string]string{"email_id": itemID},
		})
	}()

	if err := call.Validate(); err != nil {
		return outcomeError + err.Error(), false
	}

	verdict := c.gate.Evaluate(call, c.short.Counters())
	if !verdict.Allowed {
		c.logger.Warn("action denied by safety gate",
			zap.String("action", string(call.Type)),
			zap.String("rule", verdict.Rule))
		c.short.RecordEscalation(itemID, sender, verdict.Reason)
		return outcomeSafetyBlock + verdict.Reason, false
	}

	// The attempt consumes budget whether or not the capability succeeds.
	c.short.RecordAction(string(call.Type), "item "+itemID)

	out, err := c.dispatch(ctx, call)
	if err != nil {
		c.logger.Error("capability call failed",
			zap.String("action", string(call.Type)),
			zap.Error(err))
		return outcomeError + err.Error(), true
	}
	return out, false
}

// dispatch executes an allowed call against the bundle. The switch is
// exhaustive over the closed action set; destructive variants are
// unreachable because the gate denies them before dispatch.
func (c *Cycle) dispatch(ctx context.Context, call capability.Call) (string, error) {
	switch call.Type {
	case capability.ActionSendEmail:
		res, err := c.caps.Mail.Send(ctx, *call.Send)
		if err != nil {
			return "", capability.WrapErr("mail", "send", err)
		}
		return "sent message " + res.MessageID, nil

	case capability.ActionReplyToEmail:
		res, err := c.caps.Mail.Reply(ctx, *call.Reply)
		if err != nil {
			return "", capability.WrapErr("mail", "reply", err)
		}
		return "replied in thread " + res.ThreadID, nil

	case capability.ActionCreateDraft:
		res, err := c.caps.Mail.Draft(ctx, *call.Draft)
		if err != nil {
			return "", capability.WrapErr("mail", "draft", err)
		}
		return "created draft " + res.MessageID, nil

	case capability.ActionReadEmails:
		limit := c.cfg.FetchLimit
		if call.Read != nil && call.Read.MaxResults > 0 {
			limit = call.Read.MaxResults
		}
		emails, err := c.caps.Mail.ListUnseen(ctx, limit)
		if err != nil {
			return "", capability.WrapErr("mail", "list_unseen", err)
		}
		return fmt.Sprintf("fetched %d emails", len(emails)), nil

	case capability.ActionSearchEmails:
		emails, err := c.caps.Mail.Search(ctx, call.Search.Query, call.Search.MaxResults)
		if err != nil {
			return "", capability.WrapErr("mail", "search", err)
		}
		return fmt.Sprintf("found %d emails", len(emails)), nil

	case capability.ActionLabelEmail:
		if err := c.caps.Mail.Label(ctx, *call.Label); err != nil {
			return "", capability.WrapErr("mail", "label", err)
		}
		return "labeled message " + call.Label.MessageID, nil

	case capability.ActionCheckAvailability:
		if c.caps.Calendar == nil {
			return "", capability.WrapErr("calendar", "free_slots", errors.New("calendar not configured"))
		}
		slots, err := c.caps.Calendar.FreeSlots(ctx,
			call.Availability.Start, call.Availability.End, call.Availability.MinMinutes)
		if err != nil {
			return "", capability.WrapErr("calendar", "free_slots", err)
		}
		return fmt.Sprintf("found %d free slots", len(slots)), nil

	case capability.ActionCreateEvent:
		if c.caps.Calendar == nil {
			return "", capability.WrapErr("calendar", "create_event", errors.New("calendar not configured"))
		}
		res, err := c.caps.Calendar.CreateEvent(ctx, *call.Event)
		if err != nil {
			return "", capability.WrapErr("calendar", "create_event", err)
		}
		return "created event " + res.EventID, nil

	case capability.ActionScheduleFollowUp:
		fu, err := c.long.CreateFollowUp(call.FollowUp.EmailID, call.FollowUp.Sender,
			call.FollowUp.DueTime, call.FollowUp.Note)
		if err != nil {
			return "", err
		}
		return "scheduled follow-up " + fu.ID + " for " + fu.DueTime.Format(time.RFC3339), nil

	case capability.ActionGetCRMContact:
		if c.caps.CRM == nil {
			return "", capability.WrapErr("crm", "get_contact", errors.New("crm not configured"))
		}
		contact, err := c.caps.CRM.GetContact(ctx, call.Contact.Email)
		if err != nil {
			return "", capability.WrapErr("crm", "get_contact", err)
		}
		if contact == nil {
			return "no contact on file for " + call.Contact.Email, nil
		}
		return "found contact " + contact.Email, nil

	case capability.ActionUpdateCRM:
		if c.caps.CRM == nil {
			return "", capability.WrapErr("crm", "update_contact", errors.New("crm not configured"))
		}
		if err := c.caps.CRM.UpdateContact(ctx, call.CRMUpdate.Email,
			call.CRMUpdate.Action, call.CRMUpdate.Fields); err != nil {
			return "", capability.WrapErr("crm", "update_contact", err)
		}
		return "updated contact " + call.CRMUpdate.Email, nil

	case capability.ActionEscalationAlert:
		if c.caps.Alerts == nil {
			return "", capability.WrapErr("alerts", "escalate", errors.New("alerts not configured"))
		}
		if err := c.caps.Alerts.Escalate(ctx, call.Alert.Channel,
			call.Alert.Message, call.Alert.Urgency); err != nil {
			return "", capability.WrapErr("alerts", "escalate", err)
		}
		return "escalation sent", nil
	}

	return "", fmt.Errorf("no executor for action %q", call.Type)
}

// buildEmailContext assembles the full decision context for an inbound
// message. A missing profile is first contact, not an error.
func (c *Cycle) buildEmailContext(email capability.Email) DecisionContext {
	sender := email.Sender.Email

	profile, err := c.long.GetProfile(sender)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		c.logger.Warn("profile lookup failed, treating as first contact",
			zap.String("sender", sender), zap.Error(err))
		profile = nil
	}

	pending, err := c.long.PendingFollowUpsForSender(sender)
	if err != nil {
		c.logger.Warn("follow-up lookup failed", zap.String("sender", sender), zap.Error(err))
	}

	return DecisionContext{
		Email:             &email,
		Profile:           profile,
		PendingFollowUps:  pending,
		ActionsTakenToday: c.short.ActionCount(),
		Objectives:        c.objectives(),
	}
}

// buildFollowUpContext assembles the reduced context for a due follow-up:
// the sender is already known, so no pending-list lookup is repeated.
func (c *Cycle) buildFollowUpContext(fu memory.FollowUp) DecisionContext {
	profile, err := c.long.GetProfile(fu.Sender)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		c.logger.Warn("profile lookup failed", zap.String("sender", fu.Sender), zap.Error(err))
		profile = nil
	}
	return DecisionContext{
		FollowUp:          &fu,
		Profile:           profile,
		ActionsTakenToday: c.short.ActionCount(),
		Objectives:        c.objectives(),
	}
}

// remember writes the unconditional per-item audit trail. Store failures
// are retried once and then logged; a degraded audit beats a dead loop.
func (c *Cycle) remember(sender string, entry memory.HistoryEntry, rec memory.ActionRecord) {
	patch := memory.ProfilePatch{HistoryEntry: &entry}
	if _, err := c.long.UpsertProfile(sender, patch); err != nil {
		c.logger.Warn("profile update failed, retrying once", zap.String("sender", sender), zap.Error(err))
		if _, err := c.long.UpsertProfile(sender, patch); err != nil {
			c.logger.Error("profile update lost after retry", zap.String("sender", sender), zap.Error(err))
		}
	}
	c.appendRecord(rec)
}

// appendRecord writes one audit record with a single retry.
func (c *Cycle) appendRecord(rec memory.ActionRecord) {
	if _, err := c.long.AppendActionRecord(rec); err != nil {
		c.logger.Warn("action record write failed, retrying once", zap.Error(err))
		if _, err := c.long.AppendActionRecord(rec); err != nil {
			c.logger.Error("action record lost after retry", zap.Error(err))
		}
	}
}

// toolName maps an action to the capability that serves it, for the audit
// trail.
func toolName(at capability.ActionType) string {
	switch at {
	case capability.ActionSendEmail, capability.ActionReplyToEmail, capability.ActionCreateDraft,
		capability.ActionReadEmails, capability.ActionSearchEmails, capability.ActionLabelEmail,
		capability.ActionDeleteEmail, capability.ActionDeletePermanent, capability.ActionTrashPermanent,
		capability.ActionPurge, capability.ActionExpunge:
		return "mail"
	case capability.ActionCheckAvailability, capability.ActionCreateEvent:
		return "calendar"
	case capability.ActionScheduleFollowUp:
		return "memory"
	case capability.ActionGetCRMContact, capability.ActionUpdateCRM:
		return "crm"
	case capability.ActionEscalationAlert:
		return "alerts"
	}
	return "unknown"
}
