// Package timeparse normalizes natural-language date and time expressions
// into absolute values relative to a reference instant. Resolution is a pure
// function of (expression, reference): the same inputs always produce the
// same output, and unrecognized input is reported as an error rather than
// guessed at.
package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnrecognized is returned when an expression cannot be resolved.
// Callers are expected to re-prompt the user instead of defaulting.
var ErrUnrecognized = errors.New("unrecognized date/time expression")

// DateLayout is the canonical wire format for resolved dates.
const DateLayout = "2006-01-02"

// Clock is a resolved time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock in the booking API's HH:MM format.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var dateLayouts = []string{DateLayout, "02/01/2006", "01/02/2006"}

// ResolveDate converts a date expression into a calendar date (midnight UTC).
// Relative forms are interpreted against ref: "tomorrow" is ref+1 day, a bare
// weekday name is the next future occurrence of that weekday (never ref's own
// day), "next <weekday>" is one week after that, and "weekend" means the next
// Saturday.
func ResolveDate(expr string, ref time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	if s == "" {
		return time.Time{}, ErrUnrecognized
	}

	today := midnight(ref)

	switch {
	case strings.Contains(s, "today"), strings.Contains(s, "tonight"):
		return today, nil
	case strings.Contains(s, "tomorrow"):
		return today.AddDate(0, 0, 1), nil
	case strings.Contains(s, "weekend"):
		return nextWeekday(today, time.Saturday), nil
	}

	for name, wd := range weekdays {
		if strings.Contains(s, name) {
			d := nextWeekday(today, wd)
			if strings.Contains(s, "next") {
				d = d.AddDate(0, 0, 7)
			}
			return d, nil
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return midnight(t), nil
		}
	}

	return time.Time{}, ErrUnrecognized
}

// timeRe matches 24-hour, 12-hour with meridiem, and bare-hour forms.
var timeRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// ResolveTime converts a time-of-day expression ("19:00", "7pm", "7.30pm",
// bare "7") into a Clock. A bare hour between 6 and 11 without a meridiem is
// assumed to mean the evening, matching how guests phrase dinner times.
func ResolveTime(expr string) (Clock, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	s = strings.ReplaceAll(s, ".", ":")

	m := timeRe.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, ErrUnrecognized
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return Clock{}, ErrUnrecognized
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return Clock{}, ErrUnrecognized
		}
	}

	switch m[3] {
	case "pm":
		if hour > 12 {
			return Clock{}, ErrUnrecognized
		}
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return Clock{}, ErrUnrecognized
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour >= 6 && hour <= 11 {
			hour += 12
		}
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// nextWeekday returns the next occurrence of wd strictly after today.
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}
