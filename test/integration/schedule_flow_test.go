package integration

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/memory"
)

// TestFullScheduleFlow walks the lifecycle of one medicine end to end:
// registration, alarm derivation, a second medicine sharing a slot, the
// upcoming query, and adherence marks raising a caretaker alert.
func TestFullScheduleFlow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddPatient("patient-1", schedule.MealTimes{
		{Meal: schedule.MealBreakfast, Time: "08:00 AM"},
		{Meal: schedule.MealLunch, Time: "01:00 PM"},
		{Meal: schedule.MealDinner, Time: "08:30 PM"},
	})

	scheduler := schedule.NewScheduler(store, zap.NewNop())

	// 2024-03-04 is a Monday.
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	metformin, alarms, err := scheduler.AddMedicineSchedule(ctx, "patient-1", schedule.MedicineDescriptor{
		Name:         "Metformin",
		Type:         "tablet",
		IntakeTimes:  []string{"Before Breakfast", "After Dinner"},
		CustomTimes:  []string{"23:30"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 3,
		IsCritical:   true,
	}, now)
	if err != nil {
		t.Fatalf("AddMedicineSchedule(metformin) error = %v", err)
	}
	if len(alarms) != 3 {
		t.Fatalf("alarms = %d, want 3 (two meal slots + one custom)", len(alarms))
	}

	// The custom time is normalized and appended to the medicine's keys.
	if len(metformin.AlarmKeys) != 3 {
		t.Errorf("alarm keys = %v, want meal codes plus custom code", metformin.AlarmKeys)
	}
	var custom *schedule.Alarm
	for i := range alarms {
		if alarms[i].IsCustom {
			custom = &alarms[i]
		}
	}
	if custom == nil {
		t.Fatal("no custom alarm attached")
	}
	if custom.Time != "11:30 PM" {
		t.Errorf("custom alarm time = %q, want 11:30 PM", custom.Time)
	}

	// A second medicine on the same dinner slot merges into the existing
	// alarm instead of creating a new one.
	vitamins, _, err := scheduler.AddMedicineSchedule(ctx, "patient-1", schedule.MedicineDescriptor{
		Name:         "Vitamin D",
		Type:         "capsule",
		IntakeTimes:  []string{"After Dinner"},
		Frequency:    schedule.FrequencySpecificDays,
		Days:         []string{"Mon", "Thu"},
		DurationDays: 14,
	}, now)
	if err != nil {
		t.Fatalf("AddMedicineSchedule(vitamin d) error = %v", err)
	}

	all, err := store.FindAlarms(ctx, "patient-1")
	if err != nil {
		t.Fatalf("FindAlarms() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("stored alarms = %d, want 3", len(all))
	}
	for _, a := range all {
		if a.AlarmCode == schedule.CodeAfterDinner && len(a.Medicines) != 2 {
			t.Errorf("dinner alarm medicines = %d, want 2", len(a.Medicines))
		}
	}

	// At 09:00 on Monday everything is still ahead: the dinner alarm (both
	// medicines active on Monday), the custom alarm, but not breakfast.
	upcoming, err := scheduler.Upcoming(ctx, "patient-1", now)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("upcoming = %d, want 2", len(upcoming))
	}
	if upcoming[0].AlarmCode != schedule.CodeAfterDinner {
		t.Errorf("first upcoming = code %d, want after dinner (09:00 PM before 11:30 PM)", upcoming[0].AlarmCode)
	}

	// Tuesday: the vitamin runs Mon/Thu only, so the dinner alarm carries
	// just the metformin.
	tuesday := now.AddDate(0, 0, 1)
	upcoming, err = scheduler.Upcoming(ctx, "patient-1", tuesday.Add(-8*time.Hour)) // 01:00
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	for _, a := range upcoming {
		if a.AlarmCode != schedule.CodeAfterDinner {
			continue
		}
		if len(a.Medicines) != 1 || a.Medicines[0].MedicineID != metformin.ID {
			t.Errorf("tuesday dinner medicines = %+v, want only metformin", a.Medicines)
		}
	}

	// Adherence: a missed critical dose records a caretaker alert.
	if _, err := scheduler.RecordAdherence(ctx, "patient-1", vitamins.ID, schedule.AdherenceTaken); err != nil {
		t.Fatalf("RecordAdherence(taken) error = %v", err)
	}
	med, err := scheduler.RecordAdherence(ctx, "patient-1", metformin.ID, schedule.AdherenceMissed)
	if err != nil {
		t.Fatalf("RecordAdherence(missed) error = %v", err)
	}
	if med.Missed != 1 {
		t.Errorf("missed = %d, want 1", med.Missed)
	}

	alerts := store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].MedicineID != metformin.ID || alerts[0].Kind != "dose.missed" {
		t.Errorf("alert = %+v, want missed-dose alert for metformin", alerts[0])
	}
}
