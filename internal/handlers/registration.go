package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"airwatch/internal/auth"
	"airwatch/internal/models"
)

// firmwareVersionPattern accepts dotted numeric versions like "1.0.0".
var firmwareVersionPattern = regexp.MustCompile(`^\d+(\.\d+){1,3}$`)

// RegistrationHandler exchanges device credentials for a bearer token.
type RegistrationHandler struct {
	registrar *auth.Registrar
}

// NewRegistrationHandler creates a registration handler.
func NewRegistrationHandler(registrar *auth.Registrar) *RegistrationHandler {
	return &RegistrationHandler{registrar: registrar}
}

// ServeHTTP handles POST /api/v1/device/{serial}/registration. The shared
// secret travels in the x-device-shared-secret header and the firmware
// version as a query parameter.
func (h *RegistrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	serialNumber := r.PathValue("serial")
	if serialNumber == "" {
		writeError(w, http.StatusBadRequest, "serial number is required")
		return
	}

	sharedSecret := r.Header.Get("x-device-shared-secret")
	if sharedSecret == "" {
		writeError(w, http.StatusBadRequest, "x-device-shared-secret header is required")
		return
	}

	firmwareVersion := r.URL.Query().Get("firmwareVersion")
	if !firmwareVersionPattern.MatchString(firmwareVersion) {
		writeError(w, http.StatusBadRequest, "firmwareVersion must be a dotted numeric version")
		return
	}

	token, err := h.registrar.Register(r.Context(), serialNumber, sharedSecret, firmwareVersion)
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			writeNotFound(w, serialNumber)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}
