// Package availability decides whether a booking fits a room's weekly opening
// hours and renders those hours as a VAVAILABILITY document.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EndOfDay is the time of day written as 24:00.
const EndOfDay TimeOfDay = 24 * 60

// ErrInvalidTime is returned for clock values that are not HH:MM in 00:00..24:00.
var ErrInvalidTime = errors.New("availability: invalid time of day")

// TimeOfDay counts minutes since local midnight, 0 through 1440.
type TimeOfDay int

// ParseTimeOfDay parses HH:MM. 24:00 is accepted as the end of the day.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || hours > 24 || (hours == 24 && minutes != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return TimeOfDay(hours*60 + minutes), nil
}

// String formats the value as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func timeOfDay(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// endTimeOfDay rounds a partial minute up so an end past the bound never fits.
func endTimeOfDay(t time.Time) TimeOfDay {
	tod := timeOfDay(t)
	if t.Second() != 0 || t.Nanosecond() != 0 {
		tod++
	}
	return tod
}

// Rule is a weekly window. A booking fits when it lies entirely inside the
// window on days listed in Days.
type Rule struct {
	Days  []time.Weekday
	Start TimeOfDay
	End   TimeOfDay
}

// NewRule builds a rule from 0=Sunday..6=Saturday day numbers and HH:MM bounds.
func NewRule(days []int, start, end string) (Rule, error) {
	rule := Rule{}
	for _, day := range days {
		if day < 0 || day > 6 {
			return Rule{}, fmt.Errorf("availability: weekday %d out of range", day)
		}
		rule.Days = append(rule.Days, time.Weekday(day))
	}
	var err error
	if rule.Start, err = ParseTimeOfDay(start); err != nil {
		return Rule{}, err
	}
	if rule.End, err = ParseTimeOfDay(end); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (r Rule) hasDay(day time.Weekday) bool {
	for _, candidate := range r.Days {
		if candidate == day {
			return true
		}
	}
	return false
}

// SortedDays returns the rule days in week order without duplicates.
func (r Rule) SortedDays() []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(r.Days))
	out := make([]time.Weekday, 0, len(r.Days))
	for _, day := range r.Days {
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RuleSet is a room's availability configuration.
type RuleSet struct {
	Enabled bool
	Rules   []Rule
}

// Restricted reports whether the set limits bookings at all.
func (s RuleSet) Restricted() bool {
	return s.Enabled && len(s.Rules) > 0
}

// localDay is a calendar date in the room timezone.
type localDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) localDay {
	y, m, d := t.Date()
	return localDay{year: y, month: m, day: d}
}

func (d localDay) midnight(loc *time.Location) time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, loc)
}

// IsWithinAvailability reports whether [start, end) fits at least one rule,
// evaluated on the wall clock of loc. An unrestricted set accepts everything.
func IsWithinAvailability(set RuleSet, loc *time.Location, start, end time.Time) bool {
	if !set.Restricted() {
		return true
	}
	if !end.After(start) {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, rule := range set.Rules {
		if fits(rule, start.In(loc), end.In(loc), loc) {
			return true
		}
	}
	return false
}

func fits(rule Rule, start, end time.Time, loc *time.Location) bool {
	if len(rule.Days) == 0 {
		return false
	}

	firstDay := dayOf(start)
	lastDay := dayOf(end)
	endTime := endTimeOfDay(end)
	// An end at local midnight closes the previous day at 24:00.
	if endTime == 0 {
		lastDay = dayOf(end.Add(-time.Minute))
		endTime = EndOfDay
	}

	if firstDay == lastDay {
		return rule.hasDay(start.Weekday()) &&
			timeOfDay(start) >= rule.Start &&
			endTime <= rule.End
	}

	last := lastDay.midnight(loc)
	for day := firstDay.midnight(loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		if !rule.hasDay(day.Weekday()) {
			return false
		}
	}
	return timeOfDay(start) >= rule.Start && endTime <= rule.End
}

// Evaluator applies room availability rule sets, resolving each room's
// timezone name with a fallback location.
type Evaluator struct {
	fallback *time.Location
}

// NewEvaluator returns an evaluator that uses fallback for rooms without a
// valid timezone. A nil fallback means UTC.
func NewEvaluator(fallback *time.Location) *Evaluator {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Evaluator{fallback: fallback}
}

// Location resolves an IANA timezone name, falling back to the default.
func (e *Evaluator) Location(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return e.fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return e.fallback
	}
	return loc
}

// IsWithinAvailability evaluates the set on the wall clock of the named timezone.
func (e *Evaluator) IsWithinAvailability(set RuleSet, timezone string, start, end time.Time) bool {
	return IsWithinAvailability(set, e.Location(timezone), start, end)
}
