package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/internal/infrastructure/pipeline"
)

// ReportSource fetches adherence reports from the analysis pipeline
type ReportSource interface {
	Report(ctx context.Context, patientID string) (*pipeline.AdherenceReport, error)
}

// ReportHandler proxies adherence report requests to the pipeline service
type ReportHandler struct {
	source ReportSource
	logger *zap.Logger
}

// NewReportHandler creates a new handler
func NewReportHandler(source ReportSource, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{source: source, logger: logger}
}

// Routes returns the handler routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/adherence", h.GetAdherence)
	return r
}

// GetAdherence handles GET /adherence. When the pipeline's circuit is open
// the endpoint fails fast with 503 instead of queueing requests behind a
// dead service.
func (h *ReportHandler) GetAdherence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, "patientID")

	report, err := h.source.Report(ctx, patientID)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			h.logger.Warn("report pipeline unavailable", zap.String("patient_id", patientID))
			jsonError(w, "report service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("report fetch failed",
			zap.String("patient_id", patientID),
			zap.Error(err))
		jsonError(w, "failed to fetch report", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
