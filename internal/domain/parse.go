package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLogLines = 10
	MaxLogLines     = 200
)

// ParseIntervalMinutes parses a whole, positive number of minutes.
func ParseIntervalMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidInterval
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	if err := ValidateIntervalMinutes(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateIntervalMinutes rejects non-positive intervals.
func ValidateIntervalMinutes(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, n)
	}
	return nil
}

// ParseLineCount parses the optional line count of the log command.
// Empty input yields DefaultLogLines.
func ParseLineCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLogLines, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxLogLines {
		return 0, fmt.Errorf("%w: want 1..%d, got %q", ErrInvalidLineCount, MaxLogLines, s)
	}
	return n, nil
}

// SplitIDs splits command arguments on whitespace and commas.
func SplitIDs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// FormatCountdown renders a duration as "1d 4h 05m"; negative values render as "0m".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	mins := int(d / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %02dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
