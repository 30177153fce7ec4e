// Package store adapts the repo layer into the narrow key-value contract the
// bot's services depend on: the duty schedule, the reminder marker and the
// per-user conversation records.
//
// Layout (kv_entries rows):
//
//	scalar/duty_schedule            ordered JSON object slot → assignee
//	scalar/reminder_sent            last "Jan 02" label reminders went out for
//	user_status/<name>              IN | OUT
//	user_id_map/<name>              sender user id
//	conversation_state/<user id>    JSON ConversationState
//	active_swap_requests/<chat id>  JSON SwapRequest, keyed by target chat
//
// Each method is an independent read or write, except MutateSchedule, which
// runs its read-modify-write in one transaction.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/duty-roster-bot/internal/domain"
	"github.com/tbourn/duty-roster-bot/internal/repo"
)

// Namespaces and scalar keys.
const (
	ScalarNamespace = "scalar"

	KeySchedule     = "duty_schedule"
	KeyReminderSent = "reminder_sent"

	NSUserStatus   = "user_status"
	NSUserIDMap    = "user_id_map"
	NSConversation = "conversation_state"
	NSSwapRequests = "active_swap_requests"
)

// Store is the GORM-backed implementation. It is safe for concurrent use.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New wraps db. The logger receives warnings about malformed records.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for components that query their own tables.
func (s *Store) DB() *gorm.DB { return s.db }

// --- generic flags ---

// GetFlag returns the value at (ns, key) and whether it was present.
func (s *Store) GetFlag(ctx context.Context, ns, key string) (string, bool, error) {
	v, err := repo.GetKV(ctx, s.db, ns, key)
	if repo.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
	return v, true, nil
}

// SetFlag writes value at (ns, key).
func (s *Store) SetFlag(ctx context.Context, ns, key, value string) error {
	if err := repo.PutKV(ctx, s.db, ns, key, value); err != nil {
		return fmt.Errorf("set %s/%s: %w", ns, key, err)
	}
	return nil
}

// ClearFlag removes (ns, key).
func (s *Store) ClearFlag(ctx context.Context, ns, key string) error {
	if err := repo.DeleteKV(ctx, s.db, ns, key); err != nil {
		return fmt.Errorf("clear %s/%s: %w", ns, key, err)
	}
	return nil
}

// --- schedule ---

// LoadSchedule returns the stored schedule. Unset or malformed data yields an
// empty schedule; only store failures are errors.
func (s *Store) LoadSchedule(ctx context.Context) (domain.Schedule, error) {
	raw, ok, err := s.GetFlag(ctx, ScalarNamespace, KeySchedule)
	if err != nil || !ok {
		return domain.Schedule{}, err
	}
	return s.decodeSchedule(raw), nil
}

// SaveSchedule overwrites the stored schedule.
func (s *Store) SaveSchedule(ctx context.Context, sch domain.Schedule) error {
	b, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return s.SetFlag(ctx, ScalarNamespace, KeySchedule, string(b))
}

// MutateSchedule loads the schedule, applies fn and writes the result back in
// a single transaction. If fn returns an error nothing is written and the
// error is returned unchanged.
func (s *Store) MutateSchedule(ctx context.Context, fn func(*domain.Schedule) error) (domain.Schedule, error) {
	var out domain.Schedule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		raw, err := repo.GetKVForUpdate(ctx, tx, ScalarNamespace, KeySchedule)
		if err != nil && !repo.IsNotFound(err) {
			return fmt.Errorf("load schedule: %w", err)
		}
		sch := s.decodeSchedule(raw)
		if err := fn(&sch); err != nil {
			return err
		}
		b, err := json.Marshal(sch)
		if err != nil {
			return fmt.Errorf("encode schedule: %w", err)
		}
		if err := repo.PutKV(ctx, tx, ScalarNamespace, KeySchedule, string(b)); err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		out = sch
		return nil
	})
	return out, err
}

func (s *Store) decodeSchedule(raw string) domain.Schedule {
	if raw == "" {
		return domain.Schedule{}
	}
	sch, err := domain.ParseScheduleJSON(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("stored schedule is malformed; treating as empty")
		return domain.Schedule{}
	}
	return sch
}

// --- reminder marker ---

// ReminderMarker returns the label reminders were last sent for.
func (s *Store) ReminderMarker(ctx context.Context) (string, bool, error) {
	return s.GetFlag(ctx, ScalarNamespace, KeyReminderSent)
}

// SetReminderMarker records label as sent.
func (s *Store) SetReminderMarker(ctx context.Context, label string) error {
	return s.SetFlag(ctx, ScalarNamespace, KeyReminderSent, label)
}

// --- conversation state ---

// State returns the user's conversation state. A corrupt record is logged and
// treated as Idle.
func (s *Store) State(ctx context.Context, userID int64) (domain.ConversationState, error) {
	raw, ok, err := s.GetFlag(ctx, NSConversation, idKey(userID))
	if err != nil || !ok {
		return domain.Idle(), err
	}
	st, err := domain.DecodeState(raw)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("discarding corrupt conversation state")
		return domain.Idle(), nil
	}
	return st, nil
}

// SetState replaces the user's conversation state. Setting Idle clears it.
func (s *Store) SetState(ctx context.Context, userID int64, st domain.ConversationState) error {
	if st.IsIdle() {
		return s.ClearState(ctx, userID)
	}
	if err := st.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return s.SetFlag(ctx, NSConversation, idKey(userID), string(b))
}

// ClearState returns the user to Idle.
func (s *Store) ClearState(ctx context.Context, userID int64) error {
	return s.ClearFlag(ctx, NSConversation, idKey(userID))
}

// --- swap requests ---

// SwapRequest returns the pending request addressed to targetChatID.
func (s *Store) SwapRequest(ctx context.Context, targetChatID int64) (domain.SwapRequest, bool, error) {
	raw, ok, err := s.GetFlag(ctx, NSSwapRequests, idKey(targetChatID))
	if err != nil || !ok {
		return domain.SwapRequest{}, false, err
	}
	var req domain.SwapRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		s.log.Warn().Err(err).Int64("chat_id", targetChatID).Msg("discarding corrupt swap request")
		return domain.SwapRequest{}, false, nil
	}
	return req, true, nil
}

// PutSwapRequest stores req under its target chat id, replacing any earlier
// request to the same target.
func (s *Store) PutSwapRequest(ctx context.Context, req domain.SwapRequest) error {
	b, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode swap request: %w", err)
	}
	return s.SetFlag(ctx, NSSwapRequests, idKey(req.TargetChatID), string(b))
}

// DeleteSwapRequest clears the request addressed to targetChatID.
func (s *Store) DeleteSwapRequest(ctx context.Context, targetChatID int64) error {
	return s.ClearFlag(ctx, NSSwapRequests, idKey(targetChatID))
}

// --- presence ---

// SetStatus records name as IN or OUT.
func (s *Store) SetStatus(ctx context.Context, name, status string) error {
	return s.SetFlag(ctx, NSUserStatus, name, status)
}

// RecordUserID remembers the sender id last seen for name.
func (s *Store) RecordUserID(ctx context.Context, name string, userID int64) error {
	return s.SetFlag(ctx, NSUserIDMap, name, idKey(userID))
}

// Status is one member's recorded presence.
type Status struct {
	Name  string
	Value string
}

// Statuses returns every recorded status ordered by name.
func (s *Store) Statuses(ctx context.Context) ([]Status, error) {
	rows, err := repo.ListKV(ctx, s.db, NSUserStatus)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, r := range rows {
		out = append(out, Status{Name: r.Key, Value: r.Value})
	}
	return out, nil
}

func idKey(id int64) string { return strconv.FormatInt(id, 10) }
