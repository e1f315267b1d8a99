package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"airwatch/internal/auth"
	"airwatch/internal/engine"
	"airwatch/internal/middleware"
)

// RouterConfig carries the collaborators the HTTP API needs.
type RouterConfig struct {
	Engine      *engine.Engine
	Registrar   *auth.Registrar
	Tokens      *auth.TokenService
	MaxBodySize int64
}

// NewRouter builds the API mux. Registration is anonymous; readings and the
// alert log require an ingestion-scoped bearer token.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/device/{serial}/registration", middleware.Chain(
		NewRegistrationHandler(cfg.Registrar),
		middleware.Recovery,
		middleware.Logging,
	))

	mux.Handle("/api/v1/device/readings/batch", middleware.Chain(
		NewReadingsHandler(cfg.Engine, cfg.MaxBodySize),
		middleware.Recovery,
		middleware.Logging,
		middleware.Auth(cfg.Tokens, auth.ScopeIngest),
	))

	mux.Handle("/api/v1/device/alerts", middleware.Chain(
		NewAlertsHandler(cfg.Engine),
		middleware.Recovery,
		middleware.Logging,
		middleware.Auth(cfg.Tokens, auth.ScopeIngest),
	))

	return mux
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeNotFound writes the device-not-found response.
func writeNotFound(w http.ResponseWriter, serialNumber string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    "Device.NotFound",
		"message": fmt.Sprintf("Device with serial number '%s' was not found", serialNumber),
	})
}
