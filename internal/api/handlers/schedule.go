// Package handlers provides HTTP handlers for the reminder API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/api/middleware"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/domain/schedule"
	"github.com/SaurabhShahane30/codecrew-khacks/internal/observability/metrics"
	"github.com/SaurabhShahane30/codecrew-khacks/pkg/idempotency"
)

// ScheduleHandler handles medicine, alarm and adherence endpoints. Routes are
// mounted under a patient scope, so every operation reads the patientID URL
// parameter.
type ScheduleHandler struct {
	scheduler *schedule.Scheduler
	inbox     *idempotency.Inbox
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewScheduleHandler creates a new handler. inbox and m may be nil, which
// disables submission deduplication and metric counters respectively.
func NewScheduleHandler(scheduler *schedule.Scheduler, inbox *idempotency.Inbox, m *metrics.Metrics, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{
		scheduler: scheduler,
		inbox:     inbox,
		metrics:   m,
		logger:    logger,
	}
}

// Routes returns the handler routes
func (h *ScheduleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/medicines", h.AddMedicine)
	r.Get("/medicines/active", h.ActiveMedicines)
	r.Post("/medicines/{medicineID}/adherence", h.RecordAdherence)
	r.Get("/alarms/upcoming", h.Upcoming)
	return r
}

// AddMedicineResponse is the response for registering a medicine
type AddMedicineResponse struct {
	Medicine *schedule.Medicine `json:"medicine"`
	Alarms   []schedule.Alarm   `json:"alarms"`
}

// AddMedicine handles POST /medicines
func (h *ScheduleHandler) AddMedicine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("schedule-handler")
	ctx, span := tracer.Start(ctx, "add_medicine")
	defer span.End()

	patientID := chi.URLParam(r, "patientID")
	span.SetAttributes(attribute.String("patient_id", patientID))

	var desc schedule.MedicineDescriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if desc.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()

	process := func() (*AddMedicineResponse, error) {
		med, alarms, err := h.scheduler.AddMedicineSchedule(ctx, patientID, desc, now)
		if err != nil {
			return nil, err
		}
		return &AddMedicineResponse{Medicine: med, Alarms: alarms}, nil
	}

	var (
		resp *AddMedicineResponse
		err  error
	)
	if h.inbox != nil {
		// Deduplicate retried submissions: the same patient registering the
		// same medicine name within the same minute is one request.
		key := idempotency.GenerateKey(patientID, desc.Name, now)
		payload, _ := json.Marshal(desc)

		result, procErr := h.inbox.Process(ctx, key, "add-medicine", payload, func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			out, err := process()
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		})
		if procErr != nil {
			err = procErr
		} else {
			resp = &AddMedicineResponse{}
			if unmarshalErr := json.Unmarshal(result.Result, resp); unmarshalErr != nil {
				err = unmarshalErr
			}
		}
	} else {
		resp, err = process()
	}

	if err != nil {
		h.logger.Error("add medicine failed",
			zap.String("patient_id", patientID),
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Error(err))
		span.RecordError(err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	if h.metrics != nil {
		h.metrics.MedicinesCreated.Inc()
		h.metrics.AlarmsUpserted.Add(float64(len(resp.Alarms)))
	}

	h.logger.Info("medicine registered",
		zap.String("medicine_id", resp.Medicine.ID),
		zap.String("patient_id", patientID),
		zap.Int("alarms", len(resp.Alarms)))

	writeJSON(w, http.StatusCreated, resp)
}

// Upcoming handles GET /alarms/upcoming. An optional now query parameter
// (RFC 3339) overrides the reference time, used by clients rendering a
// specific moment.
func (h *ScheduleHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	now := time.Now().UTC()
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			jsonError(w, "now must be RFC 3339", http.StatusBadRequest)
			return
		}
		now = parsed
	}

	alarms, err := h.scheduler.Upcoming(ctx, patientID, now)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	if h.metrics != nil {
		h.metrics.UpcomingQueries.Inc()
	}

	if alarms == nil {
		alarms = []schedule.Alarm{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alarms": alarms})
}

// ActiveMedicines handles GET /medicines/active. The date query parameter
// defaults to today.
func (h *ScheduleHandler) ActiveMedicines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(schedule.DateLayout, raw)
		if err != nil {
			jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	medicines, err := h.scheduler.ActiveOn(ctx, patientID, date)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	if medicines == nil {
		medicines = []schedule.AlarmMedicine{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"medicines": medicines})
}

// AdherenceRequest is the request body for an adherence mark
type AdherenceRequest struct {
	Status schedule.AdherenceStatus `json:"status"`
}

// RecordAdherence handles POST /medicines/{medicineID}/adherence
func (h *ScheduleHandler) RecordAdherence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")
	medicineID := chi.URLParam(r, "medicineID")

	var req AdherenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.Valid() {
		jsonError(w, "status must be taken, missed or delayed", http.StatusBadRequest)
		return
	}

	med, err := h.scheduler.RecordAdherence(ctx, patientID, medicineID, req.Status)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}

	if h.metrics != nil {
		h.metrics.AdherenceMarks.WithLabelValues(string(req.Status)).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"medicine_id": med.ID,
		"taken":       med.Taken,
		"missed":      med.Missed,
		"delayed":     med.Delayed,
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrPatientNotFound),
		errors.Is(err, schedule.ErrMedicineNotFound),
		errors.Is(err, schedule.ErrAlarmNotFound):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrMalformedTime),
		errors.Is(err, schedule.ErrUnknownIntakeSlot),
		errors.Is(err, schedule.ErrInvalidAlarmCode),
		errors.Is(err, schedule.ErrMealTimeMissing):
		return http.StatusBadRequest
	case errors.Is(err, idempotency.ErrMessageInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
