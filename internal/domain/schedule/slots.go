package schedule

import "fmt"

// Meal-relative alarm codes. Codes 1-6 are reserved; every other alarm code
// is a hash of a normalized custom time string.
const (
	CodeBeforeBreakfast = 1
	CodeAfterBreakfast  = 2
	CodeBeforeLunch     = 3
	CodeAfterLunch      = 4
	CodeBeforeDinner    = 5
	CodeAfterDinner     = 6
)

var intakeSlotCodes = map[string]int{
	"Before Breakfast": CodeBeforeBreakfast,
	"After Breakfast":  CodeAfterBreakfast,
	"Before Lunch":     CodeBeforeLunch,
	"After Lunch":      CodeAfterLunch,
	"Before Dinner":    CodeBeforeDinner,
	"After Dinner":     CodeAfterDinner,
}

// SlotCode maps a meal-relative intake label to its reserved alarm code.
func SlotCode(label string) (int, error) {
	code, ok := intakeSlotCodes[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownIntakeSlot, label)
	}
	return code, nil
}

// SlotCodes maps an ordered list of intake labels, preserving order.
func SlotCodes(labels []string) ([]int, error) {
	codes := make([]int, 0, len(labels))
	for _, label := range labels {
		code, err := SlotCode(label)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// CustomAlarmCode derives the alarm code for a custom clock time. The time is
// first normalized to the canonical 12-hour label so that "21:15" and
// "09:15 PM" share one identity, then hashed. The second return value is the
// normalized label, which becomes the alarm's fired time.
func CustomAlarmCode(timeLabel string) (int, string, error) {
	normalized, err := To12Hour(timeLabel)
	if err != nil {
		return 0, "", err
	}
	return timeHash(normalized), normalized, nil
}

// timeHash is a 31-base polynomial rolling hash folded to a non-negative
// 32-bit value. The code is a natural key component persisted across
// processes, so the arithmetic is pinned to int32 regardless of platform.
func timeHash(s string) int {
	var h int32
	for i := 0; i < len(s); i++ {
		h = h<<5 - h + int32(s[i])
	}
	if h < 0 {
		h = -h
	}
	return int(h)
}
