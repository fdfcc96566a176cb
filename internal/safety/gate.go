// Package safety implements the hard policy gate evaluated before every
// capability call. The seven rules are fixed at compile time, checked in a
// fixed priority order, and short-circuit on the first violation, so any
// given (action, counters) pair always produces the same verdict for the
// same reason. The decision procedure cannot reorder, disable, or extend
// them.
package safety

import (
	"fmt"

	"inboxmind/internal/capability"
)

// Rule identifiers, in evaluation order.
const (
	RuleDailyLimit      = "stop_if_daily_limit_exceeded"
	RuleNeverDelete     = "never_delete_email_permanently"
	RuleNoMassEmail     = "never_send_mass_email_over_50"
	RuleNoCredentials   = "never_share_credentials"
	RuleNoSpamReply     = "never_reply_to_spam"
	RuleNoFinancial     = "never_take_financial_actions"
	RuleNoImpersonation = "never_impersonate"
)

// hardRules lists every rule in the order it is applied.
var hardRules = []string{
	RuleDailyLimit,
	RuleNeverDelete,
	RuleNoMassEmail,
	RuleNoCredentials,
	RuleNoSpamReply,
	RuleNoFinancial,
	RuleNoImpersonation,
}

// Rules returns the immutable rule identifiers in evaluation order.
func Rules() []string {
	out := make([]string, len(hardRules))
	copy(out, hardRules)
	return out
}

// CounterSnapshot is the caller's view of its session counters at evaluation
// time. The gate only reads it; ownership stays with the calling loop.
type CounterSnapshot struct {
	ActionsTaken int
}

// Verdict is the outcome of evaluating one proposed action.
type Verdict struct {
	Allowed bool
	Rule    string // violated rule ID when not allowed
	Reason  string
}

// ViolationError carries a denial for callers that ignore the Verdict.
type ViolationError struct {
	Rule   string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("safety violation (%s): %s", e.Rule, e.Reason)
}

// Limits are the numeric policy parameters. The rule set itself is not
// configurable; only these thresholds are.
type Limits struct {
	// DailyActionLimit is the per-session action budget.
	DailyActionLimit int
	// MaxRecipients caps the resolved recipient count of one send/draft.
	MaxRecipients int
}

// DefaultLimits returns the production thresholds.
func DefaultLimits() Limits {
	return Limits{
		DailyActionLimit: 50,
		MaxRecipients:    50,
	}
}

// Gate evaluates proposed actions against the hard rules. It holds no
// mutable state, so one Gate may serve any number of concurrent loops as
// long as each passes its own counters.
type Gate struct {
	limits Limits
}

// NewGate builds a gate with the given thresholds. Zero or negative
// thresholds fall back to defaults.
func NewGate(limits Limits) *Gate {
	def := DefaultLimits()
	if limits.DailyActionLimit <= 0 {
		limits.DailyActionLimit = def.DailyActionLimit
	}
	if limits.MaxRecipients <= 0 {
		limits.MaxRecipients = def.MaxRecipients
	}
	return &Gate{limits: limits}
}

// Limits returns the gate's thresholds.
func (g *Gate) Limits() Limits { return g.limits }

// Evaluate runs every hard rule against the proposed call, in fixed order,
// stopping at the first violation. It is deterministic and side-effect-free:
// identical inputs always yield identical verdicts.
func (g *Gate) Evaluate(call capability.Call, counters CounterSnapshot) Verdict {
	// 1. Daily budget. Checked first so an exhausted session denies every
	// action type, destructive or not.
	if counters.ActionsTaken >= g.limits.DailyActionLimit {
		return deny(RuleDailyLimit, fmt.Sprintf(
			"daily action limit of %d has been reached; no further actions are permitted this session",
			g.limits.DailyActionLimit))
	}

	// 2. Permanent deletion.
	if call.IsDestructive() {
		return deny(RuleNeverDelete, fmt.Sprintf(
			"action %q would permanently delete mail; this is prohibited", call.Type))
	}

	// 3. Mass email.
	if n := len(call.Recipients()); n > g.limits.MaxRecipients {
		return deny(RuleNoMassEmail, fmt.Sprintf(
			"attempted to send to %d recipients (limit: %d)", n, g.limits.MaxRecipients))
	}

	// 4. Credential leakage.
	if call.IsOutboundContent() {
		if pattern := matchCredential(call.OutboundText()); pattern != "" {
			return deny(RuleNoCredentials, fmt.Sprintf(
				"outgoing message appears to contain credentials or secrets (matched %q)", pattern))
		}
	}

	// 5. Replying to spam. Classification runs on the caller-supplied
	// original message, independently of whatever the decision procedure
	// believed about it.
	if original := call.OriginalContext(); original != nil {
		if IsSpam(*original) {
			return deny(RuleNoSpamReply,
				"the original email is classified as spam; replying is prohibited")
		}
	}

	// 6. Financial commitments.
	if call.IsOutboundContent() {
		if kw := matchFinancial(call.OutboundText()); kw != "" {
			return deny(RuleNoFinancial, fmt.Sprintf(
				"outgoing message references financial action %q; the agent cannot commit to financial transactions, escalate to a human", kw))
		}
	}

	// 7. Impersonation. Body only; quoted subjects mentioning a title are
	// not by themselves a claim of authority.
	if call.IsOutboundContent() {
		if phrase := matchImpersonation(call.OutboundBody()); phrase != "" {
			return deny(RuleNoImpersonation, fmt.Sprintf(
				"outgoing message contains impersonation phrase %q; the agent must not present itself as a human authority", phrase))
		}
	}

	return Verdict{Allowed: true}
}

// Guard evaluates the call and returns a *ViolationError on denial, so
// callers that drop the verdict are still blocked.
func (g *Gate) Guard(call capability.Call, counters CounterSnapshot) error {
	v := g.Evaluate(call, counters)
	if v.Allowed {
		return nil
	}
	return &ViolationError{Rule: v.Rule, Reason: v.Reason}
}

// BudgetExhausted reports whether the session has spent its action budget.
func (g *Gate) BudgetExhausted(counters CounterSnapshot) bool {
	return counters.ActionsTaken >= g.limits.DailyActionLimit
}

func deny(rule, reason string) Verdict {
	return Verdict{Allowed: false, Rule: rule, Reason: rule + ": " + reason}
}
