// Package schedule contains the time-based predicates that decide when the bot
// proactively messages the roster: the 15:00 status refresh on qualifying days
// and the 21:00 duty reminder for tomorrow's slots.
//
// Every predicate takes the current instant explicitly and normalizes it to
// the Engine's location, so callers (and tests) control the clock.
//
// Both triggers are minute-exact: ShouldTriggerRefresh is true only at 15:00
// and ShouldSendReminder only at 21:00. A caller polling less often than once
// a minute can miss the window entirely.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/tbourn/duty-roster-bot/internal/domain"
)

const (
	RefreshHour  = 15
	ReminderHour = 21

	dateLayout = "2006-01-02"
)

// HolidayRange is an inclusive YYYY-MM-DD range.
type HolidayRange struct {
	Start string
	End   string
}

// Engine evaluates the predicates for one configured location, holiday list
// and weekend rule. It is immutable and safe for concurrent use.
type Engine struct {
	loc      *time.Location
	holidays []HolidayRange
	weekend  rrule.ROption
}

// NewEngine parses weekendRule (an RFC 5545 RRULE such as
// "FREQ=WEEKLY;BYDAY=FR,SA,SU") and returns an Engine.
func NewEngine(loc *time.Location, holidays []HolidayRange, weekendRule string) (*Engine, error) {
	if loc == nil {
		return nil, errors.New("schedule: nil location")
	}
	opt, err := rrule.StrToROption(weekendRule)
	if err != nil {
		return nil, fmt.Errorf("schedule: weekend rule: %w", err)
	}
	hs := make([]HolidayRange, len(holidays))
	copy(hs, holidays)
	return &Engine{loc: loc, holidays: hs, weekend: *opt}, nil
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location { return e.loc }

// Local converts t to the engine's time zone.
func (e *Engine) Local(t time.Time) time.Time { return t.In(e.loc) }

// IsSchoolHoliday reports whether t's local date lies within any configured
// range, boundaries included. Dates compare as YYYY-MM-DD strings.
func (e *Engine) IsSchoolHoliday(t time.Time) bool {
	d := e.Local(t).Format(dateLayout)
	for _, h := range e.holidays {
		if h.Start <= d && d <= h.End {
			return true
		}
	}
	return false
}

// IsWeekendWindow reports whether t's local date is an occurrence day of the
// weekend rule (Friday through Sunday by default).
func (e *Engine) IsWeekendWindow(t time.Time) bool {
	l := e.Local(t)
	day := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, e.loc)

	opt := e.weekend
	opt.Dtstart = day
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return false
	}
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return len(r.Between(day, end, true)) > 0
}

// TomorrowFormats returns the label spellings of tomorrow's date that the
// public holiday check looks for, e.g. "Jul 09", "Jul  9", "09 Jul",
// "Jul 09 (Wed)" and "9 Jul".
func (e *Engine) TomorrowFormats(now time.Time) []string {
	tm := e.Local(now).AddDate(0, 0, 1)
	return []string{
		tm.Format("Jan 02"),
		tm.Format("Jan _2"),
		tm.Format("02 Jan"),
		tm.Format("Jan 02 (Mon)"),
		tm.Format("2 Jan"),
	}
}

// IsTomorrowPublicHoliday reports whether any slot label marked "PH"
// (case-insensitive) mentions tomorrow's date in one of TomorrowFormats.
// Matching is substring containment against the label or its upper case.
func (e *Engine) IsTomorrowPublicHoliday(sch domain.Schedule, now time.Time) bool {
	formats := e.TomorrowFormats(now)
	for _, sl := range sch.Slots() {
		upper := strings.ToUpper(sl.Label)
		if !strings.Contains(upper, "PH") {
			continue
		}
		for _, f := range formats {
			if strings.Contains(sl.Label, f) || strings.Contains(upper, f) {
				return true
			}
		}
	}
	return false
}

// ShouldTriggerRefresh is true exactly at 15:00 local time on a weekend
// window day, a school holiday, or the eve of a schedule-marked public
// holiday.
func (e *Engine) ShouldTriggerRefresh(sch domain.Schedule, now time.Time) bool {
	l := e.Local(now)
	if l.Hour() != RefreshHour || l.Minute() != 0 {
		return false
	}
	return e.IsWeekendWindow(l) || e.IsSchoolHoliday(l) || e.IsTomorrowPublicHoliday(sch, l)
}

// ShouldSendReminder is true exactly at 21:00 local time.
func (e *Engine) ShouldSendReminder(now time.Time) bool {
	l := e.Local(now)
	return l.Hour() == ReminderHour && l.Minute() == 0
}

// TomorrowLabel is tomorrow's slot prefix, e.g. "Jul 24".
func (e *Engine) TomorrowLabel(now time.Time) string {
	return e.Local(now).AddDate(0, 0, 1).Format("Jan 02")
}

// TomorrowKey is tomorrow's evening slot label, e.g. "Jul 24 (Thu) PM".
func (e *Engine) TomorrowKey(now time.Time) string {
	return e.Local(now).AddDate(0, 0, 1).Format("Jan 02 (Mon)") + " PM"
}

// Flags is a snapshot of every predicate at one instant, for debug logging.
type Flags struct {
	Now                   time.Time
	SchoolHoliday         bool
	WeekendWindow         bool
	TomorrowPublicHoliday bool
	TriggerRefresh        bool
	SendReminder          bool
}

// Flags evaluates all predicates at now.
func (e *Engine) Flags(sch domain.Schedule, now time.Time) Flags {
	l := e.Local(now)
	return Flags{
		Now:                   l,
		SchoolHoliday:         e.IsSchoolHoliday(l),
		WeekendWindow:         e.IsWeekendWindow(l),
		TomorrowPublicHoliday: e.IsTomorrowPublicHoliday(sch, l),
		TriggerRefresh:        e.ShouldTriggerRefresh(sch, l),
		SendReminder:          e.ShouldSendReminder(l),
	}
}
