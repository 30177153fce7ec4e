package domain

import (
	"encoding/json"
	"fmt"
)

// StateKind discriminates the variants of ConversationState.
type StateKind string

const (
	StateIdle                  StateKind = "idle"
	StateAwaitingSchedule      StateKind = "awaiting_schedule"
	StateAwaitingCoverChoice   StateKind = "awaiting_cover_choice"
	StateAwaitingSwapTarget    StateKind = "awaiting_swap_target"
	StateAwaitingSwapOwnChoice StateKind = "awaiting_swap_own_choice"
	StateAwaitingTrainingFile  StateKind = "awaiting_training_file"
)

// ConversationState is the single pending flow of one user. Only the fields
// belonging to Kind are meaningful:
//
//	AwaitingSwapTarget      Target (whose slot the user is choosing)
//	AwaitingSwapOwnChoice   Target, TargetSlot
//
// A user holds at most one state, so starting a new flow replaces whatever
// was pending.
type ConversationState struct {
	Kind       StateKind `json:"kind"`
	Target     string    `json:"target,omitempty"`
	TargetSlot string    `json:"target_slot,omitempty"`
}

func Idle() ConversationState             { return ConversationState{Kind: StateIdle} }
func AwaitingSchedule() ConversationState { return ConversationState{Kind: StateAwaitingSchedule} }
func AwaitingCoverChoice() ConversationState {
	return ConversationState{Kind: StateAwaitingCoverChoice}
}
func AwaitingTrainingFile() ConversationState {
	return ConversationState{Kind: StateAwaitingTrainingFile}
}

func AwaitingSwapTarget(target string) ConversationState {
	return ConversationState{Kind: StateAwaitingSwapTarget, Target: target}
}

func AwaitingSwapOwnChoice(target, targetSlot string) ConversationState {
	return ConversationState{Kind: StateAwaitingSwapOwnChoice, Target: target, TargetSlot: targetSlot}
}

// IsIdle reports whether no flow is pending.
func (s ConversationState) IsIdle() bool { return s.Kind == "" || s.Kind == StateIdle }

// Validate checks that the variant's required fields are present.
func (s ConversationState) Validate() error {
	switch s.Kind {
	case "", StateIdle, StateAwaitingSchedule, StateAwaitingCoverChoice, StateAwaitingTrainingFile:
		return nil
	case StateAwaitingSwapTarget:
		if s.Target == "" {
			return fmt.Errorf("state %s: missing target", s.Kind)
		}
		return nil
	case StateAwaitingSwapOwnChoice:
		if s.Target == "" || s.TargetSlot == "" {
			return fmt.Errorf("state %s: missing target or target slot", s.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown conversation state %q", s.Kind)
	}
}

// DecodeState parses a persisted state record. Empty input is Idle.
func DecodeState(raw string) (ConversationState, error) {
	if raw == "" {
		return Idle(), nil
	}
	var s ConversationState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Idle(), fmt.Errorf("decode conversation state: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Idle(), err
	}
	if s.Kind == "" {
		s.Kind = StateIdle
	}
	return s, nil
}

// SwapRequest is a pending proposal awaiting the target's yes/no. It is
// stored under the target's chat id.
type SwapRequest struct {
	Requester       string `json:"requester"`
	Target          string `json:"target"`
	RequesterSlot   string `json:"requester_slot"`
	TargetSlot      string `json:"target_slot"`
	RequesterChatID int64  `json:"requester_chat_id"`
	TargetChatID    int64  `json:"target_chat_id"`
}

// UserStatus values recorded by /in and /out.
const (
	StatusIn  = "IN"
	StatusOut = "OUT"
)
