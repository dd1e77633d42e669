package itip

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

const (
	floatingLayout = "20060102T150405"
	dateLayout     = "20060102"
)

// windowsZones maps the Windows zone names Outlook and Exchange put in TZID
// to IANA names. It is consulted when the calendar carries no usable VTIMEZONE.
var windowsZones = map[string]string{
	"UTC":                             "UTC",
	"GMT Standard Time":               "Europe/London",
	"Greenwich Standard Time":         "Atlantic/Reykjavik",
	"W. Europe Standard Time":         "Europe/Berlin",
	"Central Europe Standard Time":    "Europe/Budapest",
	"Central European Standard Time":  "Europe/Warsaw",
	"Romance Standard Time":           "Europe/Paris",
	"E. Europe Standard Time":         "Europe/Chisinau",
	"FLE Standard Time":               "Europe/Kiev",
	"GTB Standard Time":               "Europe/Bucharest",
	"Russian Standard Time":           "Europe/Moscow",
	"Turkey Standard Time":            "Europe/Istanbul",
	"Israel Standard Time":            "Asia/Jerusalem",
	"Arabian Standard Time":           "Asia/Dubai",
	"India Standard Time":             "Asia/Kolkata",
	"China Standard Time":             "Asia/Shanghai",
	"Singapore Standard Time":         "Asia/Singapore",
	"Tokyo Standard Time":             "Asia/Tokyo",
	"Korea Standard Time":             "Asia/Seoul",
	"AUS Eastern Standard Time":       "Australia/Sydney",
	"New Zealand Standard Time":       "Pacific/Auckland",
	"Eastern Standard Time":           "America/New_York",
	"Central Standard Time":           "America/Chicago",
	"Mountain Standard Time":          "America/Denver",
	"US Mountain Standard Time":       "America/Phoenix",
	"Pacific Standard Time":           "America/Los_Angeles",
	"Alaskan Standard Time":           "America/Anchorage",
	"Hawaiian Standard Time":          "Pacific/Honolulu",
	"Atlantic Standard Time":          "America/Halifax",
	"E. South America Standard Time":  "America/Sao_Paulo",
	"Argentina Standard Time":         "America/Buenos_Aires",
	"South Africa Standard Time":      "Africa/Johannesburg",
	"Egypt Standard Time":             "Africa/Cairo",
	"Central America Standard Time":   "America/Guatemala",
	"Canada Central Standard Time":    "America/Regina",
	"SA Pacific Standard Time":        "America/Bogota",
	"Pacific SA Standard Time":        "America/Santiago",
	"Mexico Standard Time":            "America/Mexico_City",
	"Central Standard Time (Mexico)":  "America/Mexico_City",
	"SE Asia Standard Time":           "Asia/Bangkok",
	"Taipei Standard Time":            "Asia/Taipei",
	"W. Australia Standard Time":      "Australia/Perth",
	"Cen. Australia Standard Time":    "Australia/Adelaide",
	"E. Australia Standard Time":      "Australia/Brisbane",
	"Pakistan Standard Time":          "Asia/Karachi",
	"Bangladesh Standard Time":        "Asia/Dhaka",
	"Arab Standard Time":              "Asia/Riyadh",
	"Iran Standard Time":              "Asia/Tehran",
	"W. Central Africa Standard Time": "Africa/Lagos",
	"E. Africa Standard Time":         "Africa/Nairobi",
}

// Zones resolves TZID parameters that the IANA database does not know, most
// often Windows names, from the VTIMEZONE definitions of one calendar.
type Zones struct {
	defs map[string]*ical.Component
}

// CalendarZones indexes the VTIMEZONE components of cal by TZID.
func CalendarZones(cal *ical.Calendar) Zones {
	zones := Zones{defs: make(map[string]*ical.Component)}
	if cal == nil {
		return zones
	}
	for _, child := range cal.Children {
		if child.Name != ical.CompTimezone {
			continue
		}
		if id := strings.TrimSpace(propValue(child, ical.PropTimezoneID)); id != "" {
			zones.defs[id] = child
		}
	}
	return zones
}

// DateTime reads a DATE or DATE-TIME property. Values with an unknown TZID
// that no VTIMEZONE or Windows name explains are read on the wall clock of
// loc rather than dropped.
func (z Zones) DateTime(prop *ical.Prop, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	tzid := strings.TrimSpace(prop.Params.Get(ical.ParamTimezoneID))
	if tzid == "" {
		return prop.DateTime(loc)
	}
	if _, err := time.LoadLocation(tzid); err == nil {
		return prop.DateTime(loc)
	}

	value := strings.TrimSpace(prop.Value)
	if len(value) == len(dateLayout) {
		return time.ParseInLocation(dateLayout, value, loc)
	}
	wall, err := time.ParseInLocation(floatingLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("itip: parse %s %q: %w", prop.Name, prop.Value, err)
	}
	return inLocation(wall, z.location(tzid, wall, loc)), nil
}

func (z Zones) location(tzid string, wall time.Time, fallback *time.Location) *time.Location {
	if def, ok := z.defs[tzid]; ok {
		if offset, ok := vtimezoneOffset(def, wall); ok {
			return time.FixedZone(tzid, offset)
		}
	}
	if name, ok := windowsZones[tzid]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return fallback
}

// eventTimes reads DTSTART and DTEND, deriving the end from DURATION when
// DTEND is absent.
func (z Zones) eventTimes(event *ical.Component, loc *time.Location) (start time.Time, hasStart bool, end time.Time, hasEnd bool) {
	if prop := event.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, err := z.DateTime(prop, loc); err == nil && !t.IsZero() {
			start, hasStart = t, true
		}
	}
	if prop := event.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := z.DateTime(prop, loc); err == nil && !t.IsZero() {
			end, hasEnd = t, true
		}
		return
	}
	if !hasStart {
		return
	}
	if prop := event.Props.Get(ical.PropDuration); prop != nil {
		if d, err := prop.Duration(); err == nil {
			end, hasEnd = start.Add(d), true
		}
	}
	return
}

// vtimezoneOffset finds the STANDARD or DAYLIGHT observance in effect at the
// wall clock time and returns its TZOFFSETTO in seconds.
func vtimezoneOffset(def *ical.Component, wall time.Time) (int, bool) {
	var (
		bestOnset  time.Time
		bestOffset int
		found      bool
		earliest   time.Time
		preOffset  int
		anyRule    bool
	)
	for _, child := range def.Children {
		if child.Name != ical.CompTimezoneStandard && child.Name != ical.CompTimezoneDaylight {
			continue
		}
		dtstart, err := time.ParseInLocation(floatingLayout, strings.TrimSpace(propValue(child, ical.PropDateTimeStart)), time.UTC)
		if err != nil {
			continue
		}
		to, errTo := parseUTCOffset(propValue(child, ical.PropTimezoneOffsetTo))
		from, errFrom := parseUTCOffset(propValue(child, ical.PropTimezoneOffsetFrom))
		if errTo != nil {
			continue
		}
		if !anyRule || dtstart.Before(earliest) {
			earliest = dtstart
			preOffset = to
			if errFrom == nil {
				preOffset = from
			}
			anyRule = true
		}

		onset := dtstart
		if raw := strings.TrimSpace(propValue(child, ical.PropRecurrenceRule)); raw != "" {
			option, err := rrule.StrToROption(raw)
			if err != nil {
				continue
			}
			option.Dtstart = dtstart
			rule, err := rrule.NewRRule(*option)
			if err != nil {
				continue
			}
			onset = rule.Before(wall, true)
			if onset.IsZero() {
				continue
			}
		} else if dtstart.After(wall) {
			continue
		}
		if !found || onset.After(bestOnset) {
			bestOnset, bestOffset, found = onset, to, true
		}
	}
	if found {
		return bestOffset, true
	}
	if anyRule {
		return preOffset, true
	}
	return 0, false
}

// parseUTCOffset parses +HHMM, -HHMM or +HHMMSS.
func parseUTCOffset(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 5 && len(raw) != 7 {
		return 0, fmt.Errorf("itip: invalid UTC offset %q", raw)
	}
	sign := 1
	switch raw[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("itip: invalid UTC offset %q", raw)
	}
	digits := raw[1:]
	if len(digits) == 4 {
		digits += "00"
	}
	hh, errH := strconv.Atoi(digits[0:2])
	mm, errM := strconv.Atoi(digits[2:4])
	ss, errS := strconv.Atoi(digits[4:6])
	if errH != nil || errM != nil || errS != nil || mm > 59 || ss > 59 {
		return 0, fmt.Errorf("itip: invalid UTC offset %q", raw)
	}
	return sign * (hh*3600 + mm*60 + ss), nil
}

func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)
}
