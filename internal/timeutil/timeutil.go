// Package timeutil parses the short duration notation used for expirations
// ("30s", "10m", "2h", "1d") and derives quota periods.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var shortDuration = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTimeToSeconds converts a short duration such as "2h" into seconds.
func ParseTimeToSeconds(input string) (int64, error) {
	m := shortDuration.FindStringSubmatch(input)
	if m == nil {
		return 0, fmt.Errorf("invalid time format: %q", input)
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time value %q: %w", m[1], err)
	}

	switch m[2] {
	case "s":
		return value, nil
	case "m":
		return value * 60, nil
	case "h":
		return value * 3600, nil
	default:
		return value * 86400, nil
	}
}

func ParseDuration(input string) (time.Duration, error) {
	secs, err := ParseTimeToSeconds(input)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// FromNow returns the instant that lies the given short duration after now.
func FromNow(input string) (time.Time, error) {
	d, err := ParseDuration(input)
	if err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(d), nil
}

// Period returns the UTC calendar month of t formatted as YYYY-MM.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func CurrentPeriod() string {
	return Period(time.Now())
}
