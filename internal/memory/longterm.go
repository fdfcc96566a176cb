package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned for point lookups that match nothing, including
// follow-up transitions whose row is absent or no longer pending.
var ErrNotFound = errors.New("memory: not found")

// LongTerm is the durable store: sender profiles, the append-only action
// log, and the follow-up registry. It may be shared by loops for multiple
// operators; every conflicting mutation runs in its own transaction.
type LongTerm struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewLongTerm opens (creating if needed) the SQLite database at path.
func NewLongTerm(path string, logger *zap.Logger) (*LongTerm, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection keeps profile read-modify-write cycles from
	// interleaving inside this process; cross-process writers serialize on
	// SQLite's own locking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &LongTerm{db: db, dbPath: path, logger: logger}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("long-term memory ready", zap.String("path", path))
	return store, nil
}

// Close closes the database connection.
func (s *LongTerm) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LongTerm) Path() string { return s.dbPath }

// ---------------------------------------------------------------------------
// Sender profiles
// ---------------------------------------------------------------------------

// GetProfile returns the profile for an address, or ErrNotFound.
func (s *LongTerm) GetProfile(email string) (*SenderProfile, error) {
	row := s.db.QueryRow(
		`SELECT id, email, name, company, tags, history, last_interaction
		 FROM sender_profiles WHERE email = ?`, email)
	return scanProfile(row)
}

// UpsertProfile creates the profile on first contact or merges the patch
// into the existing row. Scalar fields overwrite only when supplied; the
// history entry, when present, is appended exactly once. The read-modify-
// write runs in one transaction so concurrent updates to the same sender
// cannot lose entries.
func (s *LongTerm) UpsertProfile(email string, patch ProfilePatch) (*SenderProfile, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	row := tx.QueryRow(
		`SELECT id, email, name, company, tags, history, last_interaction
		 FROM sender_profiles WHERE email = ?`, email)
	profile, err := scanProfile(row)

	switch {
	case errors.Is(err, ErrNotFound):
		profile = &SenderProfile{
			Email:           email,
			Name:            patch.Name,
			Company:         patch.Company,
			Tags:            patch.Tags,
			LastInteraction: now,
		}
		if patch.HistoryEntry != nil {
			profile.History = []HistoryEntry{*patch.HistoryEntry}
		}
		tags, history, merr := marshalProfileJSON(profile)
		if merr != nil {
			return nil, merr
		}
		res, ierr := tx.Exec(
			`INSERT INTO sender_profiles (email, name, company, tags, history, last_interaction)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			email, profile.Name, profile.Company, tags, history, now)
		if ierr != nil {
			return nil, fmt.Errorf("insert profile: %w", ierr)
		}
		profile.ID, _ = res.LastInsertId()
		s.logger.Debug("sender profile created", zap.String("email", email))

	case err != nil:
		return nil, err

	default:
		if patch.Name != "" {
			profile.Name = patch.Name
		}
		if patch.Company != "" {
			profile.Company = patch.Company
		}
		if patch.Tags != nil {
			profile.Tags = patch.Tags
		}
		if patch.HistoryEntry != nil {
			profile.History = append(profile.History, *patch.HistoryEntry)
		}
		profile.LastInteraction = now

		tags, history, merr := marshalProfileJSON(profile)
		if merr != nil {
			return nil, merr
		}
		if _, uerr := tx.Exec(
			`UPDATE sender_profiles
			 SET name = ?, company = ?, tags = ?, history = ?, last_interaction = ?
			 WHERE id = ?`,
			profile.Name, profile.Company, tags, history, now, profile.ID); uerr != nil {
			return nil, fmt.Errorf("update profile: %w", uerr)
		}
		s.logger.Debug("sender profile updated",
			zap.String("email", email),
			zap.Int("history", len(profile.History)))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}
	return profile, nil
}

func marshalProfileJSON(p *SenderProfile) (tags, history string, err error) {
	if p.Tags == nil {
		tags = "[]"
	} else {
		b, merr := json.Marshal(p.Tags)
		if merr != nil {
			return "", "", fmt.Errorf("marshal tags: %w", merr)
		}
		tags = string(b)
	}
	if p.History == nil {
		history = "[]"
	} else {
		b, merr := json.Marshal(p.History)
		if merr != nil {
			return "", "", fmt.Errorf("marshal history: %w", merr)
		}
		history = string(b)
	}
	return tags, history, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*SenderProfile, error) {
	var (
		p       SenderProfile
		tags    string
		history string
		last    sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Company, &tags, &history, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if last.Valid {
		p.LastInteraction = last.Time
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Action log
// ---------------------------------------------------------------------------

// AppendActionRecord inserts one audit entry. Records are insert-only; there
// is no update path.
func (s *LongTerm) AppendActionRecord(rec ActionRecord) (ActionRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	meta := "{}"
	if rec.Metadata != nil {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return ActionRecord{}, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO action_log (id, email_from, action_taken, tool_used, outcome, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EmailFrom, rec.ActionTaken, rec.ToolUsed, rec.Outcome, meta, rec.Timestamp)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("append action record: %w", err)
	}
	return rec, nil
}

// ActionsForSender returns recent actions related to a sender, most recent
// first.
func (s *LongTerm) ActionsForSender(email string, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, email_from, action_taken, tool_used, outcome, metadata, timestamp
		 FROM action_log WHERE email_from = ?
		 ORDER BY timestamp DESC LIMIT ?`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	return scanActionRecords(rows)
}

// ActionsBetween returns all actions in [start, end), oldest first. Reports
// are built from this.
func (s *LongTerm) ActionsBetween(start, end time.Time) ([]ActionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, email_from, action_taken, tool_used, outcome, metadata, timestamp
		 FROM action_log WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	return scanActionRecords(rows)
}

func scanActionRecords(rows *sql.Rows) ([]ActionRecord, error) {
	var out []ActionRecord
	for rows.Next() {
		var (
			rec  ActionRecord
			meta string
		)
		if err := rows.Scan(&rec.ID, &rec.EmailFrom, &rec.ActionTaken, &rec.ToolUsed,
			&rec.Outcome, &meta, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Follow-ups
// ---------------------------------------------------------------------------

// CreateFollowUp schedules a reminder. Status always starts pending.
func (s *LongTerm) CreateFollowUp(emailID, sender string, due time.Time, note string) (FollowUp, error) {
	fu := FollowUp{
		ID:        uuid.NewString(),
		EmailID:   emailID,
		Sender:    sender,
		DueTime:   due.UTC(),
		Note:      note,
		Status:    FollowUpPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO follow_ups (id, email_id, sender, due_time, note, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fu.ID, fu.EmailID, fu.Sender, fu.DueTime, fu.Note, string(fu.Status), fu.CreatedAt)
	if err != nil {
		return FollowUp{}, fmt.Errorf("create follow-up: %w", err)
	}
	s.logger.Debug("follow-up created",
		zap.String("id", fu.ID),
		zap.String("sender", sender),
		zap.Time("due", fu.DueTime))
	return fu, nil
}

// ListPendingFollowUps returns all pending follow-ups ordered by due time
// ascending.
func (s *LongTerm) ListPendingFollowUps() ([]FollowUp, error) {
	return s.queryFollowUps(
		`SELECT id, email_id, sender, due_time, note, status, created_at
		 FROM follow_ups WHERE status = 'pending' ORDER BY due_time ASC`)
}

// DueFollowUps returns pending follow-ups whose due time is at or before now.
func (s *LongTerm) DueFollowUps(now time.Time) ([]FollowUp, error) {
	return s.queryFollowUps(
		`SELECT id, email_id, sender, due_time, note, status, created_at
		 FROM follow_ups WHERE status = 'pending' AND due_time <= ?
		 ORDER BY due_time ASC`, now.UTC())
}

// PendingFollowUpsForSender returns the sender's pending follow-ups, used
// when assembling decision context.
func (s *LongTerm) PendingFollowUpsForSender(sender string) ([]FollowUp, error) {
	return s.queryFollowUps(
		`SELECT id, email_id, sender, due_time, note, status, created_at
		 FROM follow_ups WHERE status = 'pending' AND sender = ?
		 ORDER BY due_time ASC`, sender)
}

// TransitionFollowUp moves a follow-up out of pending. The update is
// conditional on the current status still being pending; a row that is
// absent or already terminal yields ErrNotFound, never a second transition.
func (s *LongTerm) TransitionFollowUp(id string, status FollowUpStatus) error {
	if status == FollowUpPending || !status.Valid() {
		return fmt.Errorf("invalid follow-up transition to %q", status)
	}
	res, err := s.db.Exec(
		`UPDATE follow_ups SET status = ? WHERE id = ? AND status = 'pending'`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("transition follow-up: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition follow-up: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("follow-up %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("follow-up transitioned",
		zap.String("id", id),
		zap.String("status", string(status)))
	return nil
}

func (s *LongTerm) queryFollowUps(query string, args ...any) ([]FollowUp, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query follow-ups: %w", err)
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var (
			fu     FollowUp
			status string
		)
		if err := rows.Scan(&fu.ID, &fu.EmailID, &fu.Sender, &fu.DueTime,
			&fu.Note, &status, &fu.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		fu.Status = FollowUpStatus(status)
		out = append(out, fu)
	}
	return out, rows.Err()
}
