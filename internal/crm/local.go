// Package crm implements the CRM capability over the local sender-profile
// store. An external CRM is optional; the local path is always available
// because it shares the agent's own durable memory.
package crm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"inboxmind/internal/capability"
	"inboxmind/internal/memory"
)

// Actions the update operation understands.
const (
	ActionAddNote      = "add_note"
	ActionAddTag       = "add_tag"
	ActionUpdateFields = "update_fields"
)

// Local is the capability.CRM implementation backed by sender profiles.
type Local struct {
	store  *memory.LongTerm
	logger *zap.Logger
}

var _ capability.CRM = (*Local)(nil)

// NewLocal builds the local CRM over the shared store.
func NewLocal(store *memory.LongTerm, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{store: store, logger: logger}
}

// GetContact returns the contact for an address, or nil when unknown.
// An unknown contact is a normal answer, not an error.
func (l *Local) GetContact(ctx context.Context, email string) (*capability.Contact, error) {
	profile, err := l.store.GetProfile(email)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup contact %s: %w", email, err)
	}

	contact := &capability.Contact{
		Email:   profile.Email,
		Name:    profile.Name,
		Company: profile.Company,
		Tags:    profile.Tags,
	}
	for _, h := range profile.History {
		if h.Action == ActionAddNote && h.Note != "" {
			contact.Notes = append(contact.Notes, h.Note)
		}
	}
	return contact, nil
}

// UpdateContact applies one CRM verb to a contact, creating the profile on
// first touch. Every update leaves a history entry.
func (l *Local) UpdateContact(ctx context.Context, email, action string, fields map[string]string) error {
	entry := memory.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
	}
	patch := memory.ProfilePatch{HistoryEntry: &entry}

	switch action {
	case ActionAddNote:
		entry.Note = fields["note"]
		if entry.Note == "" {
			return fmt.Errorf("add_note requires a %q field", "note")
		}

	case ActionAddTag:
		tag := fields["tag"]
		if tag == "" {
			return fmt.Errorf("add_tag requires a %q field", "tag")
		}
		profile, err := l.store.GetProfile(email)
		if err != nil && !errors.Is(err, memory.ErrNotFound) {
			return fmt.Errorf("lookup contact %s: %w", email, err)
		}
		tags := []string{tag}
		if profile != nil {
			if profile.HasTag(tag) {
				return nil
			}
			tags = append(append([]string(nil), profile.Tags...), tag)
		}
		patch.Tags = tags
		entry.Note = "tag: " + tag

	case ActionUpdateFields:
		patch.Name = fields["name"]
		patch.Company = fields["company"]
		if patch.Name == "" && patch.Company == "" {
			return fmt.Errorf("update_fields requires %q or %q", "name", "company")
		}

	default:
		return fmt.Errorf("unknown crm action %q", action)
	}

	if _, err := l.store.UpsertProfile(email, patch); err != nil {
		return fmt.Errorf("update contact %s: %w", email, err)
	}
	l.logger.Info("crm contact updated",
		zap.String("email", email),
		zap.String("action", action))
	return nil
}
