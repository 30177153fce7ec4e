package domain

import "sort"

// UnknownUser is the display name for senders missing from the roster.
const UnknownUser = "Unknown User"

// Roster is the static name → chat id mapping loaded at startup. It is never
// mutated after construction.
type Roster struct {
	byName map[string]int64
	names  []string
}

// NewRoster copies m into an immutable roster.
func NewRoster(m map[string]int64) Roster {
	r := Roster{byName: make(map[string]int64, len(m)), names: make([]string, 0, len(m))}
	for name, id := range m {
		r.byName[name] = id
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// ChatID returns the chat id mapped to name.
func (r Roster) ChatID(name string) (int64, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// NameOf resolves a user id to a roster name by linear search, falling back
// to UnknownUser.
func (r Roster) NameOf(id int64) string {
	for _, name := range r.names {
		if r.byName[name] == id {
			return name
		}
	}
	return UnknownUser
}

// Names returns member names in sorted order.
func (r Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of members.
func (r Roster) Len() int { return len(r.names) }
