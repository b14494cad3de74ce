package schedule

import "fmt"

// Meal identifies one of the three daily meals a patient configures.
type Meal string

const (
	MealBreakfast Meal = "breakfast"
	MealLunch     Meal = "lunch"
	MealDinner    Meal = "dinner"
)

// MealTime is one entry of a patient's meal schedule.
type MealTime struct {
	Meal Meal   `json:"meal"`
	Time string `json:"time"`
}

// MealTimes is a patient's full meal schedule: exactly one entry per meal.
type MealTimes []MealTime

// TimeFor returns the configured time for a meal.
func (m MealTimes) TimeFor(meal Meal) (string, error) {
	for _, entry := range m {
		if entry.Meal == meal {
			return entry.Time, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMealTimeMissing, meal)
}

// DefaultMealTimes is the schedule assigned to patients who have not set
// their own.
func DefaultMealTimes() MealTimes {
	return MealTimes{
		{Meal: MealBreakfast, Time: "09:00 AM"},
		{Meal: MealLunch, Time: "02:00 PM"},
		{Meal: MealDinner, Time: "09:00 PM"},
	}
}

// Offsets applied to the base meal time: "before" fires 15 minutes ahead of
// the meal, "after" 30 minutes past it.
const (
	beforeMealOffset = -15
	afterMealOffset  = +30
)

var mealForCode = map[int]struct {
	meal   Meal
	offset int
}{
	CodeBeforeBreakfast: {MealBreakfast, beforeMealOffset},
	CodeAfterBreakfast:  {MealBreakfast, afterMealOffset},
	CodeBeforeLunch:     {MealLunch, beforeMealOffset},
	CodeAfterLunch:      {MealLunch, afterMealOffset},
	CodeBeforeDinner:    {MealDinner, beforeMealOffset},
	CodeAfterDinner:     {MealDinner, afterMealOffset},
}

// ResolveAlarmTime computes the absolute fired time for a meal-relative alarm
// code against a patient's meal schedule. Only codes 1-6 are valid here;
// custom alarms carry their own literal time and never pass through this
// table.
func ResolveAlarmTime(code int, meals MealTimes) (string, error) {
	entry, ok := mealForCode[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrInvalidAlarmCode, code)
	}

	base, err := meals.TimeFor(entry.meal)
	if err != nil {
		return "", err
	}

	return AddMinutes(base, entry.offset)
}
