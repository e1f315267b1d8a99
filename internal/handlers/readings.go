package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"airwatch/internal/engine"
	"airwatch/internal/logger"
	"airwatch/internal/metrics"
	"airwatch/internal/middleware"
	"airwatch/internal/models"
)

// ReadingsHandler accepts batches of sensor readings from authenticated
// devices and hands them to the engine.
type ReadingsHandler struct {
	engine      *engine.Engine
	maxBodySize int64
}

// NewReadingsHandler creates a readings batch handler.
func NewReadingsHandler(eng *engine.Engine, maxBodySize int64) *ReadingsHandler {
	if maxBodySize <= 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}
	return &ReadingsHandler{engine: eng, maxBodySize: maxBodySize}
}

// SensorReadingInput is the wire format for one reading.
type SensorReadingInput struct {
	RecordedAt     string  `json:"recorded_at"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	CarbonMonoxide float64 `json:"carbon_monoxide"`
	Health         string  `json:"health"`
}

// readingsRequest allows either a wrapped or a bare array payload.
type readingsRequest struct {
	Readings []SensorReadingInput `json:"readings"`
}

// readingError describes a validation error for a specific reading.
type readingError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// ServeHTTP handles POST /api/v1/device/readings/batch.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" && contentType != "" {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	serialNumber := middleware.SerialNumber(r.Context())
	if serialNumber == "" {
		writeError(w, http.StatusUnauthorized, "missing device identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	inputs, err := parseReadingsBody(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(inputs) == 0 {
		writeError(w, http.StatusBadRequest, "no readings provided")
		return
	}

	metrics.ReadingBatchSize.Observe(float64(len(inputs)))

	readings := make([]models.DeviceReading, 0, len(inputs))
	var errs []readingError
	for i, input := range inputs {
		reading, err := input.toReading(serialNumber)
		if err == nil {
			err = reading.Validate()
		}
		if err != nil {
			errs = append(errs, readingError{Index: i, Error: err.Error()})
			metrics.ReadingsRejectedTotal.WithLabelValues("validation").Inc()
			continue
		}
		readings = append(readings, reading)
	}

	// The whole batch is rejected when any reading is malformed; partial
	// ingestion would make the batch's timestamp ordering unreliable.
	if len(errs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  errs,
		})
		return
	}

	if err := h.engine.SubmitReadings(r.Context(), serialNumber, readings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process readings")
		return
	}

	metrics.ReadingsAcceptedTotal.Add(float64(len(readings)))

	log := logger.WithDevice(serialNumber)
	log.Info().Int("batch_size", len(readings)).Msg("reading batch accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"accepted": len(readings),
	})
}

// parseReadingsBody parses the JSON body into reading inputs, accepting
// either a bare array or a {"readings": [...]} wrapper.
func parseReadingsBody(body []byte) ([]SensorReadingInput, error) {
	var req readingsRequest
	if err := json.Unmarshal(body, &req); err == nil && len(req.Readings) > 0 {
		return req.Readings, nil
	}

	var inputs []SensorReadingInput
	if err := json.Unmarshal(body, &inputs); err == nil {
		return inputs, nil
	}

	return nil, fmt.Errorf("invalid JSON format: expected array of readings")
}

func (in SensorReadingInput) toReading(serialNumber string) (models.DeviceReading, error) {
	ts, err := time.Parse(time.RFC3339, in.RecordedAt)
	if err != nil {
		return models.DeviceReading{}, fmt.Errorf("recorded_at: %w", err)
	}

	return models.DeviceReading{
		SerialNumber:   serialNumber,
		Temperature:    in.Temperature,
		Humidity:       in.Humidity,
		CarbonMonoxide: in.CarbonMonoxide,
		Health:         models.DeviceHealth(in.Health),
		RecordedAt:     ts,
	}, nil
}
