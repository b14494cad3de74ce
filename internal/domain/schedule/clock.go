// Package schedule implements the alarm-schedule derivation engine: it turns
// a medicine's abstract intake pattern into concrete per-day alarms resolved
// against a patient's meal times, and answers intra-day time-window queries.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseToMinutes converts a time-of-day string to minutes since midnight in
// [0, 1439]. Both the 12-hour labeled form ("09:15 AM") and the 24-hour form
// ("21:15") are accepted.
func ParseToMinutes(label string) (int, error) {
	clock := strings.TrimSpace(label)
	meridian := ""

	if i := strings.IndexByte(clock, ' '); i >= 0 {
		meridian = strings.ToUpper(strings.TrimSpace(clock[i+1:]))
		clock = clock[:i]
	}

	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
	}

	switch meridian {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
		}
		if meridian == "PM" && hour != 12 {
			hour += 12
		}
		if meridian == "AM" && hour == 12 {
			hour = 0
		}
	case "":
		if hour < 0 || hour > 23 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, label)
	}

	return hour*60 + minute, nil
}

// AddMinutes shifts a time-of-day label by delta minutes and re-renders it as
// a 12-hour label. The result wraps modulo 24 hours: a meal offset that
// crosses midnight lands on the adjacent day's clock time.
func AddMinutes(label string, delta int) (string, error) {
	mins, err := ParseToMinutes(label)
	if err != nil {
		return "", err
	}
	return MinutesToLabel(mins + delta), nil
}

// To12Hour normalizes a time string (12-hour or 24-hour) to the canonical
// zero-padded 12-hour label, e.g. "21:15" -> "09:15 PM".
func To12Hour(label string) (string, error) {
	mins, err := ParseToMinutes(label)
	if err != nil {
		return "", err
	}
	return MinutesToLabel(mins), nil
}

// MinutesToLabel renders minutes since midnight as a zero-padded 12-hour
// label. Out-of-range input wraps into [0, 1439].
func MinutesToLabel(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay

	hour := minutes / 60
	minute := minutes % 60

	meridian := "AM"
	if hour >= 12 {
		meridian = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}

	return fmt.Sprintf("%02d:%02d %s", hour, minute, meridian)
}
