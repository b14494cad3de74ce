package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/api/handlers"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.AddPatient("patient-1", schedule.DefaultMealTimes())

	scheduler := schedule.NewScheduler(store, zap.NewNop())
	scheduleHandler := handlers.NewScheduleHandler(scheduler, nil, nil, zap.NewNop())
	patientHandler := handlers.NewPatientHandler(store, nil, zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api/v1/patients/{patientID}", func(r chi.Router) {
		r.Mount("/", scheduleHandler.Routes())
		r.Mount("/profile", patientHandler.Routes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestAddMedicine(t *testing.T) {
	srv, _ := newTestServer(t)

	desc := schedule.MedicineDescriptor{
		Name:         "Metformin",
		Type:         "tablet",
		IntakeTimes:  []string{"Before Breakfast", "After Dinner"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 5,
	}

	resp := postJSON(t, srv.URL+"/api/v1/patients/patient-1/medicines", desc)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var out handlers.AddMedicineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Medicine == nil || out.Medicine.Name != "Metformin" {
		t.Fatalf("unexpected medicine in response: %+v", out.Medicine)
	}
	if len(out.Alarms) != 2 {
		t.Fatalf("alarms = %d, want 2", len(out.Alarms))
	}
	// Defaults are 09:00 AM breakfast, 09:00 PM dinner.
	times := map[int]string{}
	for _, a := range out.Alarms {
		times[a.AlarmCode] = a.Time
	}
	if times[schedule.CodeBeforeBreakfast] != "08:45 AM" {
		t.Errorf("before breakfast = %q, want 08:45 AM", times[schedule.CodeBeforeBreakfast])
	}
	if times[schedule.CodeAfterDinner] != "09:30 PM" {
		t.Errorf("after dinner = %q, want 09:30 PM", times[schedule.CodeAfterDinner])
	}
}

func TestAddMedicineUnknownSlot(t *testing.T) {
	srv, store := newTestServer(t)

	desc := schedule.MedicineDescriptor{
		Name:         "Metformin",
		IntakeTimes:  []string{"Before Breakfast", "Midnight Snack"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 5,
	}

	resp := postJSON(t, srv.URL+"/api/v1/patients/patient-1/medicines", desc)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	// Whole request rejected: nothing persisted.
	alarms, err := store.FindAlarms(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("FindAlarms: %v", err)
	}
	if len(alarms) != 0 {
		t.Errorf("alarms persisted after rejected request: %d", len(alarms))
	}
}

func TestAddMedicineUnknownPatient(t *testing.T) {
	srv, _ := newTestServer(t)

	desc := schedule.MedicineDescriptor{
		Name:         "Metformin",
		IntakeTimes:  []string{"Before Breakfast"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 5,
	}

	resp := postJSON(t, srv.URL+"/api/v1/patients/ghost/medicines", desc)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpcomingWithExplicitNow(t *testing.T) {
	srv, _ := newTestServer(t)

	desc := schedule.MedicineDescriptor{
		Name:         "Metformin",
		IntakeTimes:  []string{"Before Breakfast", "After Dinner"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 5,
	}
	resp := postJSON(t, srv.URL+"/api/v1/patients/patient-1/medicines", desc)
	resp.Body.Close()

	// Midday: breakfast alarm has passed, dinner alarm is ahead. The start
	// date comes from the server clock, so query the same day.
	day := mustCurrentDay(t, srv)
	resp, err := http.Get(srv.URL + "/api/v1/patients/patient-1/alarms/upcoming?now=" + day + "T12:00:00Z")
	if err != nil {
		t.Fatalf("GET upcoming: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out struct {
		Alarms []schedule.Alarm `json:"alarms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Alarms) != 1 {
		t.Fatalf("alarms = %d, want 1", len(out.Alarms))
	}
	if out.Alarms[0].AlarmCode != schedule.CodeAfterDinner {
		t.Errorf("alarm code = %d, want after dinner", out.Alarms[0].AlarmCode)
	}
}

func TestUpcomingRejectsBadNow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/patients/patient-1/alarms/upcoming?now=yesterday")
	if err != nil {
		t.Fatalf("GET upcoming: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecordAdherence(t *testing.T) {
	srv, _ := newTestServer(t)

	desc := schedule.MedicineDescriptor{
		Name:         "Metformin",
		IntakeTimes:  []string{"Before Breakfast"},
		Frequency:    schedule.FrequencyDaily,
		DurationDays: 5,
	}
	resp := postJSON(t, srv.URL+"/api/v1/patients/patient-1/medicines", desc)
	var created handlers.AddMedicineResponse
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	url := fmt.Sprintf("%s/api/v1/patients/patient-1/medicines/%s/adherence", srv.URL, created.Medicine.ID)
	resp = postJSON(t, url, handlers.AdherenceRequest{Status: schedule.AdherenceTaken})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	if out["taken"].(float64) != 1 {
		t.Errorf("taken = %v, want 1", out["taken"])
	}
}

func TestRecordAdherenceInvalidStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	url := srv.URL + "/api/v1/patients/patient-1/medicines/whatever/adherence"
	resp := postJSON(t, url, map[string]string{"status": "snoozed"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPutMealTimes(t *testing.T) {
	srv, store := newTestServer(t)

	body := handlers.PutMealTimesRequest{
		MealTimes: schedule.MealTimes{
			{Meal: schedule.MealBreakfast, Time: "07:30 AM"},
			{Meal: schedule.MealLunch, Time: "12:30 PM"},
			{Meal: schedule.MealDinner, Time: "08:00 PM"},
		},
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/patients/patient-1/profile/mealtimes", bytes.NewReader(mustMarshal(t, body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT mealtimes: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	meals, err := store.FindPatient(context.Background(), "patient-1")
	if err != nil {
		t.Fatalf("FindPatient: %v", err)
	}
	got, _ := meals.TimeFor(schedule.MealBreakfast)
	if got != "07:30 AM" {
		t.Errorf("breakfast = %q, want 07:30 AM", got)
	}
}

func TestPutMealTimesIncomplete(t *testing.T) {
	srv, _ := newTestServer(t)

	body := handlers.PutMealTimesRequest{
		MealTimes: schedule.MealTimes{
			{Meal: schedule.MealBreakfast, Time: "07:30 AM"},
		},
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/patients/patient-1/profile/mealtimes", bytes.NewReader(mustMarshal(t, body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT mealtimes: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

// mustCurrentDay reads today's date back from a created medicine, keeping the
// upcoming query on the same calendar day as the server-side start date.
func mustCurrentDay(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/v1/patients/patient-1/medicines/active")
	if err != nil {
		t.Fatalf("GET active: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Medicines []schedule.AlarmMedicine `json:"medicines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Medicines) == 0 || len(out.Medicines[0].ActiveDates) == 0 {
		t.Fatal("no active medicine to read the start date from")
	}
	return out.Medicines[0].ActiveDates[0]
}
