// Package agent implements the autonomous reasoning cycle: observe work,
// build decision context from both memories, consult the decision procedure,
// gate every proposed action through the safety policy, execute what
// survives, and remember the outcome.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"inboxmind/internal/capability"
)

// Decision is what the decision procedure proposes for one work item: a
// free-text summary plus zero or more capability calls. Nothing in a
// Decision executes until the safety gate has allowed it.
type Decision struct {
	Summary string
	Calls   []capability.Call
}

// Decider is the opaque decision procedure. Implementations may be
// non-deterministic; the cycle treats the result as a proposal, never a
// command.
type Decider interface {
	Decide(ctx context.Context, dc DecisionContext) (Decision, error)
}

const deciderSystemPrompt = `You are an email operations assistant acting on
behalf of one operator. Given an email or a due follow-up plus memory
context, decide what to do and answer with a single JSON object:

{"summary": "<one-paragraph explanation of your decision>",
 "actions": [{"action": "<action name>", "params": {...}}]}

Available actions and params:
  send_email        {"to": "a@x.com, b@x.com", "subject": "...", "body": "..."}
  reply_to_email    {"thread_id": "...", "message_id": "...", "body": "..."}
  create_draft      {"to": "...", "subject": "...", "body": "..."}
  search_emails     {"query": "...", "max_results": 10}
  label_email       {"message_id": "...", "add_labels": ["..."], "archive": false}
  check_calendar_availability {"start": "RFC3339", "end": "RFC3339", "min_minutes": 30}
  create_calendar_event {"title": "...", "start": "RFC3339", "end": "RFC3339", "attendees": ["..."]}
  schedule_followup {"email_id": "...", "sender": "...", "due_time": "RFC3339", "note": "..."}
  get_crm_contact   {"email": "..."}
  update_crm        {"email": "...", "action": "add_note|add_tag|update_fields", "fields": {...}}
  send_escalation_alert {"message": "...", "urgency": "low|medium|high"}

Propose an empty actions list when observation is the right move. Never
propose deleting mail.`

// rawDecision is the JSON wire shape produced by the model.
type rawDecision struct {
	Summary string      `json:"summary"`
	Actions []rawAction `json:"actions"`
}

type rawAction struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// ParseDecision decodes the model's JSON reply into the closed Call union.
// Unknown action names and malformed params are errors: a proposal the gate
// cannot classify must not slip through as a zero-value call.
func ParseDecision(text string) (Decision, error) {
	text = trimJSONFence(text)

	var raw rawDecision
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Decision{}, fmt.Errorf("decision is not valid JSON: %w", err)
	}

	d := Decision{Summary: raw.Summary}
	for _, ra := range raw.Actions {
		call, err := decodeCall(ra)
		if err != nil {
			return Decision{}, err
		}
		d.Calls = append(d.Calls, call)
	}
	return d, nil
}

func decodeCall(ra rawAction) (capability.Call, error) {
	call := capability.Call{Type: capability.ActionType(ra.Action)}
	params := ra.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	var err error
	switch call.Type {
	case capability.ActionSendEmail:
		call.Send = &capability.SendParams{}
		err = json.Unmarshal(params, call.Send)
	case capability.ActionReplyToEmail:
		call.Reply = &capability.ReplyParams{}
		err = json.Unmarshal(params, call.Reply)
	case capability.ActionCreateDraft:
		call.Draft = &capability.SendParams{}
		err = json.Unmarshal(params, call.Draft)
	case capability.ActionReadEmails:
		call.Read = &capability.ReadParams{}
		err = json.Unmarshal(params, call.Read)
	case capability.ActionSearchEmails:
		call.Search = &capability.SearchParams{}
		err = json.Unmarshal(params, call.Search)
	case capability.ActionLabelEmail:
		call.Label = &capability.LabelParams{}
		err = json.Unmarshal(params, call.Label)
	case capability.ActionCheckAvailability:
		call.Availability = &capability.AvailabilityParams{}
		err = json.Unmarshal(params, call.Availability)
	case capability.ActionCreateEvent:
		call.Event = &capability.EventParams{}
		err = json.Unmarshal(params, call.Event)
	case capability.ActionScheduleFollowUp:
		call.FollowUp = &capability.FollowUpParams{}
		err = json.Unmarshal(params, call.FollowUp)
	case capability.ActionGetCRMContact:
		call.Contact = &capability.ContactParams{}
		err = json.Unmarshal(params, call.Contact)
	case capability.ActionUpdateCRM:
		call.CRMUpdate = &capability.CRMUpdateParams{}
		err = json.Unmarshal(params, call.CRMUpdate)
	case capability.ActionEscalationAlert:
		call.Alert = &capability.AlertParams{}
		err = json.Unmarshal(params, call.Alert)
	case capability.ActionDeleteEmail, capability.ActionDeletePermanent,
		capability.ActionTrashPermanent, capability.ActionPurge, capability.ActionExpunge:
		// Decoded so the gate gets to refuse them by name.
	default:
		return capability.Call{}, fmt.Errorf("decision proposed unknown action %q", ra.Action)
	}
	if err != nil {
		return capability.Call{}, fmt.Errorf("decode %s params: %w", ra.Action, err)
	}
	return call, nil
}

// trimJSONFence strips a markdown code fence if the model wrapped its JSON
// in one.
func trimJSONFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}

// GeminiDecider drives the Gemini API as the decision procedure.
type GeminiDecider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// GeminiConfig configures the Gemini-backed decider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiDecider builds the decider. A missing API key is a startup
// error, not something to work around per item.
func NewGeminiDecider(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiDecider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiDecider{client: client, model: cfg.Model, logger: logger}, nil
}

// Decide renders the context, queries the model, and parses the proposal.
func (d *GeminiDecider) Decide(ctx context.Context, dc DecisionContext) (Decision, error) {
	prompt := dc.Render()
	start := time.Now()

	resp, err := d.client.Models.GenerateContent(ctx, d.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(deciderSystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.2),
		})
	if err != nil {
		return Decision{}, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	d.logger.Debug("decision received",
		zap.String("item", dc.ItemID()),
		zap.Duration("latency", time.Since(start)),
		zap.Int("chars", len(text)))

	return ParseDecision(text)
}
