package schedule

import (
	"errors"
	"testing"
)

func TestParseToMinutes(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"12:00 AM", 0},
		{"12:30 AM", 30},
		{"09:00 AM", 540},
		{"12:00 PM", 720},
		{"01:05 PM", 785},
		{"11:59 PM", 1439},
		{"00:00", 0},
		{"09:15", 555},
		{"21:15", 1275},
		{"23:59", 1439},
	}

	for _, tt := range tests {
		got, err := ParseToMinutes(tt.label)
		if err != nil {
			t.Errorf("ParseToMinutes(%q) error = %v", tt.label, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseToMinutes(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

func TestParseToMinutesMalformed(t *testing.T) {
	for _, label := range []string{
		"",
		"0900",
		"9 AM",
		"ab:cd",
		"09:xx AM",
		"09:60",
		"25:00",
		"13:00 PM",
		"09:15 XM",
	} {
		_, err := ParseToMinutes(label)
		if !errors.Is(err, ErrMalformedTime) {
			t.Errorf("ParseToMinutes(%q) error = %v, want ErrMalformedTime", label, err)
		}
	}
}

func TestAddMinutesWraparound(t *testing.T) {
	tests := []struct {
		label string
		delta int
		want  string
	}{
		{"11:50 PM", 30, "12:20 AM"},
		{"12:10 AM", -30, "11:40 PM"},
		{"09:00 AM", -15, "08:45 AM"},
		{"09:00 AM", 30, "09:30 AM"},
		{"11:45 AM", 30, "12:15 PM"},
		{"12:05 PM", -15, "11:50 AM"},
	}

	for _, tt := range tests {
		got, err := AddMinutes(tt.label, tt.delta)
		if err != nil {
			t.Errorf("AddMinutes(%q, %d) error = %v", tt.label, tt.delta, err)
			continue
		}
		if got != tt.want {
			t.Errorf("AddMinutes(%q, %d) = %q, want %q", tt.label, tt.delta, got, tt.want)
		}
	}
}

func TestTo12HourRoundTrip(t *testing.T) {
	// Normalizing a canonical 12-hour label must be the identity.
	for _, label := range []string{"12:00 AM", "01:30 AM", "11:59 AM", "12:00 PM", "09:15 PM", "11:59 PM"} {
		got, err := To12Hour(label)
		if err != nil {
			t.Fatalf("To12Hour(%q) error = %v", label, err)
		}
		if got != label {
			t.Errorf("To12Hour(%q) = %q, want identity", label, got)
		}
	}
}

func TestTo12HourFrom24Hour(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"00:00", "12:00 AM"},
		{"00:30", "12:30 AM"},
		{"09:15", "09:15 AM"},
		{"12:00", "12:00 PM"},
		{"13:05", "01:05 PM"},
		{"23:59", "11:59 PM"},
	}

	for _, tt := range tests {
		got, err := To12Hour(tt.in)
		if err != nil {
			t.Errorf("To12Hour(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("To12Hour(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMinutesToLabelWraps(t *testing.T) {
	if got := MinutesToLabel(1440); got != "12:00 AM" {
		t.Errorf("MinutesToLabel(1440) = %q, want 12:00 AM", got)
	}
	if got := MinutesToLabel(-10); got != "11:50 PM" {
		t.Errorf("MinutesToLabel(-10) = %q, want 11:50 PM", got)
	}
}
