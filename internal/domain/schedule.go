package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchedule is returned when text cannot be read as a slot → name
// mapping.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Slot is one labeled duty assignment, e.g. "Jul 24 (Thu) PM" → "Alice".
type Slot struct {
	Label    string
	Assignee string
}

// Schedule is the duty roster: an insertion-ordered mapping from slot label to
// assignee. Order matters because the cover and swap flows present numbered
// lists and resolve the user's 1-based reply against the same order.
//
// The zero value is an empty schedule ready to use.
type Schedule struct {
	slots []Slot
	index map[string]int
}

// NewSchedule builds a schedule from slots in order. Later duplicates
// overwrite the assignee of the first occurrence.
func NewSchedule(slots ...Slot) Schedule {
	var s Schedule
	for _, sl := range slots {
		s.Set(sl.Label, sl.Assignee)
	}
	return s
}

// Len returns the number of slots.
func (s Schedule) Len() int { return len(s.slots) }

// Slots returns a copy of the slots in order.
func (s Schedule) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Get returns the assignee of label.
func (s Schedule) Get(label string) (string, bool) {
	i, ok := s.index[label]
	if !ok {
		return "", false
	}
	return s.slots[i].Assignee, true
}

// Set assigns label to assignee, keeping the slot's position when it already
// exists and appending it otherwise.
func (s *Schedule) Set(label, assignee string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[label]; ok {
		s.slots[i].Assignee = assignee
		return
	}
	s.index[label] = len(s.slots)
	s.slots = append(s.slots, Slot{Label: label, Assignee: assignee})
}

// SlotsOf returns the labels assigned to name, in schedule order.
func (s Schedule) SlotsOf(name string) []string {
	var out []string
	for _, sl := range s.slots {
		if sl.Assignee == name {
			out = append(out, sl.Label)
		}
	}
	return out
}

// Clone returns an independent copy.
func (s Schedule) Clone() Schedule {
	return NewSchedule(s.slots...)
}

// Equal reports whether both schedules hold the same slots in the same order.
func (s Schedule) Equal(o Schedule) bool {
	if len(s.slots) != len(o.slots) {
		return false
	}
	for i := range s.slots {
		if s.slots[i] != o.slots[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the schedule as a JSON object in slot order.
func (s Schedule) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, sl := range s.slots {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(sl.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(sl.Assignee)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of scalar values, preserving key order.
// Numbers and booleans are kept in their textual form; null becomes "".
func (s *Schedule) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidSchedule)
	}

	var out Schedule
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		key, _ := kt.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		val, ok := scalarText(raw)
		if !ok {
			return fmt.Errorf("%w: value for %q is not a name", ErrInvalidSchedule, key)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after object", ErrInvalidSchedule)
	}

	*s = out
	return nil
}

// ParseScheduleJSON strictly parses text as a JSON object.
func ParseScheduleJSON(text string) (Schedule, error) {
	var s Schedule
	if err := s.UnmarshalJSON([]byte(strings.TrimSpace(text))); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// ParseScheduleLiteral is the permissive fallback: it accepts a flow-style
// mapping such as a Python dict literal ({'Jul 24 (Thu) PM': 'Alice'}),
// single- or double-quoted. Block-style YAML is rejected so free text like
// "a: b" is never mistaken for a schedule.
func ParseScheduleLiteral(text string) (Schedule, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return Schedule{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Schedule{}, fmt.Errorf("%w: empty document", ErrInvalidSchedule)
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode || m.Style&yaml.FlowStyle == 0 {
		return Schedule{}, fmt.Errorf("%w: expected a {...} mapping", ErrInvalidSchedule)
	}

	var out Schedule
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return Schedule{}, fmt.Errorf("%w: nested values are not allowed", ErrInvalidSchedule)
		}
		out.Set(k.Value, v.Value)
	}
	return out, nil
}

// ParseSchedule tries the strict JSON form first and falls back to the
// literal form. The returned error is the fallback's.
func ParseSchedule(text string) (Schedule, error) {
	if s, err := ParseScheduleJSON(text); err == nil {
		return s, nil
	}
	return ParseScheduleLiteral(text)
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}
