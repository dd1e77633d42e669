// Package recurrence estimates how far into the future a possibly recurring
// event reaches and compares the estimate against a room's booking horizon.
package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/room-scheduler/internal/itip"
)

// Bound classifies the furthest occurrence estimate of an event.
type Bound int

const (
	// BoundUnknown means the estimate could not be made (missing start,
	// unparsable rule). Callers treat it as within any horizon.
	BoundUnknown Bound = iota
	// BoundFinite means the event ends at a known instant.
	BoundFinite
	// BoundOpen means the event recurs forever.
	BoundOpen
)

// String implements fmt.Stringer.
func (b Bound) String() string {
	switch b {
	case BoundFinite:
		return "finite"
	case BoundOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Furthest estimates the furthest relevant instant of the event.
//
// A non-recurring event reaches its end, or its start when it has no end. A
// rule with UNTIL reaches UNTIL. A rule with COUNT=n and INTERVAL=i reaches
// start + (n-1)*i units of FREQ; this is an estimate that ignores BYxxx
// expansion. A rule with neither is open-ended.
func Furthest(event itip.EventInfo) (time.Time, Bound) {
	rule := strings.TrimSpace(event.RRule)
	if rule == "" {
		switch {
		case event.HasEnd:
			return event.End, BoundFinite
		case event.HasStart:
			return event.Start, BoundFinite
		default:
			return time.Time{}, BoundUnknown
		}
	}

	if !event.HasStart {
		return time.Time{}, BoundUnknown
	}

	option, err := rrule.StrToROption(strings.TrimPrefix(rule, "RRULE:"))
	if err != nil {
		return time.Time{}, BoundUnknown
	}

	if !option.Until.IsZero() {
		return option.Until, BoundFinite
	}
	if option.Count > 0 {
		interval := option.Interval
		if interval < 1 {
			interval = 1
		}
		steps := (option.Count - 1) * interval
		estimate, ok := advance(event.Start, option.Freq, steps)
		if !ok {
			return time.Time{}, BoundUnknown
		}
		return estimate, BoundFinite
	}
	return time.Time{}, BoundOpen
}

func advance(start time.Time, freq rrule.Frequency, steps int) (time.Time, bool) {
	switch freq {
	case rrule.YEARLY:
		return start.AddDate(steps, 0, 0), true
	case rrule.MONTHLY:
		return start.AddDate(0, steps, 0), true
	case rrule.WEEKLY:
		return start.AddDate(0, 0, 7*steps), true
	case rrule.DAILY:
		return start.AddDate(0, 0, steps), true
	case rrule.HOURLY:
		return start.Add(time.Duration(steps) * time.Hour), true
	case rrule.MINUTELY:
		return start.Add(time.Duration(steps) * time.Minute), true
	case rrule.SECONDLY:
		return start.Add(time.Duration(steps) * time.Second), true
	default:
		return time.Time{}, false
	}
}

// HorizonEstimator compares events against a maximum booking horizon counted
// from the current time.
type HorizonEstimator struct {
	now func() time.Time
}

// NewHorizonEstimator returns an estimator using now as its clock. A nil now
// uses time.Now.
func NewHorizonEstimator(now func() time.Time) *HorizonEstimator {
	if now == nil {
		now = time.Now
	}
	return &HorizonEstimator{now: now}
}

// Horizon returns the furthest instant that a room with the given limit accepts.
func (h *HorizonEstimator) Horizon(maxDays int) time.Time {
	return h.now().AddDate(0, 0, maxDays)
}

// IsWithinHorizon reports whether the event stays within maxDays from now. A
// non-positive limit means unlimited. Open-ended recurrences never fit a finite
// horizon; events whose reach cannot be estimated are let through.
func (h *HorizonEstimator) IsWithinHorizon(maxDays int, event itip.EventInfo) bool {
	if maxDays <= 0 {
		return true
	}
	furthest, bound := Furthest(event)
	switch bound {
	case BoundOpen:
		return false
	case BoundUnknown:
		return true
	}
	return !furthest.After(h.Horizon(maxDays))
}
