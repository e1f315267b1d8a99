package auth

import (
	"context"
	"time"

	"airwatch/internal/logger"
	"airwatch/internal/models"
	"airwatch/internal/store"
)

// Registrar exchanges a device's burned-in credentials for a bearer token and
// records the issuance as a device registration.
type Registrar struct {
	devices store.DeviceStore
	tokens  *TokenService
}

// NewRegistrar creates a Registrar.
func NewRegistrar(devices store.DeviceStore, tokens *TokenService) *Registrar {
	return &Registrar{devices: devices, tokens: tokens}
}

// Register validates the serial number and shared secret against the device
// store and issues an ingestion-scoped token. Previous registrations are
// deactivated and the device's firmware version is updated. Returns
// models.ErrDeviceNotFound when the credentials match no device.
func (r *Registrar) Register(ctx context.Context, serialNumber, sharedSecret, firmwareVersion string) (string, error) {
	device, err := r.devices.FindDevice(ctx, serialNumber, sharedSecret)
	if err != nil {
		return "", err
	}
	if device == nil {
		return "", models.ErrDeviceNotFound
	}

	tokenID, token, err := r.tokens.Issue(serialNumber, ScopeIngest)
	if err != nil {
		return "", err
	}

	reg := &models.DeviceRegistration{
		SerialNumber: serialNumber,
		TokenID:      tokenID,
		RegisteredAt: time.Now().UTC(),
	}
	if err := r.devices.AddRegistration(ctx, reg, firmwareVersion); err != nil {
		return "", err
	}

	log := logger.WithComponent("auth")
	log.Info().
		Str("serial_number", serialNumber).
		Str("firmware_version", firmwareVersion).
		Msg("token issued for device")

	return token, nil
}
