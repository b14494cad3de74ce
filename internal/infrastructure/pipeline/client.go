// Package pipeline is the client for the adherence analysis service, an
// external Python pipeline that turns raw taken/missed/delayed counters into
// adherence reports. The service is slow and occasionally unavailable, so
// every call goes through a circuit breaker.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/SaurabhShahane30/codecrew-khacks/pkg/circuitbreaker"
)

// Config holds client configuration
type Config struct {
	// BaseURL is the pipeline service address
	BaseURL string
	// Timeout is the per-request timeout
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Timeout: 10 * time.Second,
	}
}

// AdherenceReport is the pipeline's per-patient summary
type AdherenceReport struct {
	PatientID     string             `json:"patient_id"`
	AdherenceRate float64            `json:"adherence_rate"`
	Taken         int                `json:"taken"`
	Missed        int                `json:"missed"`
	Delayed       int                `json:"delayed"`
	PerMedicine   []MedicineSummary  `json:"per_medicine"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// MedicineSummary is the per-medicine slice of a report
type MedicineSummary struct {
	MedicineID    string  `json:"medicine_id"`
	Name          string  `json:"name"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// Client calls the adherence analysis service
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewClient creates a pipeline client with its own circuit breaker
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("adherence-pipeline"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Report fetches the adherence report for a patient. When the circuit is
// open the call fails fast without touching the network.
func (c *Client) Report(ctx context.Context, patientID string) (*AdherenceReport, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.fetchReport(ctx, patientID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*AdherenceReport), nil
}

// Breaker exposes the client's circuit breaker for health reporting
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

func (c *Client) fetchReport(ctx context.Context, patientID string) (*AdherenceReport, error) {
	endpoint := fmt.Sprintf("%s/reports/adherence/%s", c.baseURL, url.PathEscape(patientID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipeline request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("pipeline returned non-200",
			zap.String("patient_id", patientID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("pipeline returned status %d", resp.StatusCode)
	}

	var report AdherenceReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}
