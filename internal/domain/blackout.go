package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlackoutWindow is a weekly span of whole days during which polling is suspended.
// It starts at midnight of Start (in Location) and lasts Days days.
// Days == 0 disables the window.
type BlackoutWindow struct {
	Start    time.Weekday
	Days     int
	Location *time.Location
}

// Weekend is the default window: Saturday 00:00 through Monday 00:00.
func Weekend(loc *time.Location) BlackoutWindow {
	return BlackoutWindow{Start: time.Saturday, Days: 2, Location: loc}
}

// Enabled reports whether the window suspends anything at all.
func (w BlackoutWindow) Enabled() bool {
	return w.Days > 0
}

func (w BlackoutWindow) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// offset returns how many days t lies after the window start weekday (0..6).
func (w BlackoutWindow) offset(t time.Time) int {
	return (int(t.Weekday()) - int(w.Start) + 7) % 7
}

// Contains reports whether t falls inside the window. The start instant belongs
// to the window; the end instant does not.
func (w BlackoutWindow) Contains(t time.Time) bool {
	if !w.Enabled() {
		return false
	}
	if w.Days >= 7 {
		return true
	}
	return w.offset(t.In(w.loc())) < w.Days
}

// NextEnd returns the next midnight at which the window closes, strictly after t.
// For a disabled window it returns the zero time.
func (w BlackoutWindow) NextEnd(t time.Time) time.Time {
	if !w.Enabled() || w.Days >= 7 {
		return time.Time{}
	}
	local := t.In(w.loc())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

	end := time.Weekday((int(w.Start) + w.Days) % 7)
	ahead := (int(end) - int(local.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return midnight.AddDate(0, 0, ahead)
}

// String renders e.g. "saturday+2d".
func (w BlackoutWindow) String() string {
	if !w.Enabled() {
		return "disabled"
	}
	return fmt.Sprintf("%s+%dd", strings.ToLower(w.Start.String()), w.Days)
}

// ParseWeekday parses an English weekday name or its three-letter prefix.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.HasPrefix(strings.ToLower(d.String()), s) {
				return d, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday: %q", s)
}
