package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/postgres"
)

// MealTimeStore is the patient-facing slice of the store
type MealTimeStore interface {
	FindPatient(ctx context.Context, patientID string) (schedule.MealTimes, error)
	UpdateMealTimes(ctx context.Context, patientID string, meals schedule.MealTimes) error
}

// AlertLister reads stored caretaker alerts
type AlertLister interface {
	ListAlerts(ctx context.Context, patientID string) ([]postgres.CaretakerAlert, error)
}

// PatientHandler handles meal schedule and caretaker alert endpoints
type PatientHandler struct {
	store  MealTimeStore
	alerts AlertLister
	logger *zap.Logger
}

// NewPatientHandler creates a new handler. alerts may be nil when no alert
// store is wired.
func NewPatientHandler(store MealTimeStore, alerts AlertLister, logger *zap.Logger) *PatientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientHandler{store: store, alerts: alerts, logger: logger}
}

// Routes returns the handler routes
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/mealtimes", h.GetMealTimes)
	r.Put("/mealtimes", h.PutMealTimes)
	r.Get("/alerts", h.GetAlerts)
	return r
}

// GetMealTimes handles GET /mealtimes
func (h *PatientHandler) GetMealTimes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	meals, err := h.store.FindPatient(ctx, patientID)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"meal_times": meals})
}

// PutMealTimesRequest is the request body for replacing a meal schedule
type PutMealTimesRequest struct {
	MealTimes schedule.MealTimes `json:"meal_times"`
}

// PutMealTimes handles PUT /mealtimes. The new schedule affects future
// attachments only; alarms already derived keep their times.
func (h *PatientHandler) PutMealTimes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	var req PutMealTimesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// All three meals must be present with parseable times.
	for _, meal := range []schedule.Meal{schedule.MealBreakfast, schedule.MealLunch, schedule.MealDinner} {
		label, err := req.MealTimes.TimeFor(meal)
		if err != nil {
			jsonError(w, "meal schedule must set breakfast, lunch and dinner", http.StatusBadRequest)
			return
		}
		if _, err := schedule.ParseToMinutes(label); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.store.UpdateMealTimes(ctx, patientID, req.MealTimes); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	h.logger.Info("meal schedule updated", zap.String("patient_id", patientID))
	writeJSON(w, http.StatusOK, map[string]interface{}{"meal_times": req.MealTimes})
}

// GetAlerts handles GET /alerts
func (h *PatientHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	if h.alerts == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": []postgres.CaretakerAlert{}})
		return
	}

	alerts, err := h.alerts.ListAlerts(ctx, patientID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []postgres.CaretakerAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}
