// Package services holds the bot's behavior: the conversation state machine
// that answers chat messages, the trigger jobs, and the knowledge base behind
// /askmyra. This file centralizes the service-level error values so callers
// can map them to replies consistently.
package services

import "errors"

var (
	// ErrEmptyPrompt is returned when /askmyra carries no question.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when an /askmyra question reaches the length cap.
	ErrTooLong = errors.New("prompt too long")

	// ErrInvalidChoice is returned when a numbered reply is outside the list.
	ErrInvalidChoice = errors.New("choice out of range")

	// ErrNoOwnDuties is returned when a swap requester holds no slots.
	ErrNoOwnDuties = errors.New("requester has no duties")

	// ErrUnknownMember is returned when a name is missing from the roster.
	ErrUnknownMember = errors.New("member not in roster")

	// ErrNothingToTrain is returned when training input has no usable text.
	ErrNothingToTrain = errors.New("no text to learn from")

	// ErrSlotMissing is returned when a swap references a slot that has since
	// been removed from the schedule.
	ErrSlotMissing = errors.New("slot no longer in schedule")
)
