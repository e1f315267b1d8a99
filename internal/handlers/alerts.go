package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"airwatch/internal/engine"
	"airwatch/internal/middleware"
	"airwatch/internal/models"
)

// AlertsHandler serves the paged alert log for authenticated devices.
type AlertsHandler struct {
	engine *engine.Engine
}

// NewAlertsHandler creates an alert log handler.
func NewAlertsHandler(eng *engine.Engine) *AlertsHandler {
	return &AlertsHandler{engine: eng}
}

// paginationMetadata mirrors the page shape into the X-Pagination header.
type paginationMetadata struct {
	TotalCount  int  `json:"total_count"`
	PageSize    int  `json:"page_size"`
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// ServeHTTP handles GET /api/v1/device/alerts.
func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	serialNumber := middleware.SerialNumber(r.Context())
	if serialNumber == "" {
		writeError(w, http.StatusUnauthorized, "missing device identity")
		return
	}

	filter := models.FilterNew
	if f := r.URL.Query().Get("filter"); f != "" {
		filter = models.AlertFilter(f)
		if !filter.IsValid() {
			writeError(w, http.StatusBadRequest, "filter must be one of: new, resolved, all")
			return
		}
	}

	pageNumber := queryInt(r, "page_number", 1)
	pageSize := queryInt(r, "page_size", models.MaxPageSize)

	page, err := h.engine.GetAlertLog(r.Context(), serialNumber, filter, pageNumber, pageSize)
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			writeNotFound(w, serialNumber)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query alert log")
		return
	}

	metadata, _ := json.Marshal(paginationMetadata{
		TotalCount:  page.TotalCount,
		PageSize:    page.PageSize,
		CurrentPage: page.PageNumber,
		TotalPages:  page.TotalPages(),
		HasNext:     page.HasNext(),
		HasPrevious: page.HasPrevious(),
	})
	w.Header().Set("X-Pagination", string(metadata))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
