package models

import (
	"errors"
	"time"
)

// ErrDeviceNotFound is the only domain error surfaced to callers: the device
// named in a query or registration attempt is unknown (or the shared secret
// does not match).
var ErrDeviceNotFound = errors.New("device not found")

// Device is a provisioned sensor unit, identified by the serial number
// burned into its ROM.
type Device struct {
	SerialNumber    string `json:"serial_number"`
	SharedSecret    string `json:"-"`
	FirmwareVersion string `json:"firmware_version"`

	FirstRegisteredAt *time.Time `json:"first_registered_at,omitempty"`
	LastRegisteredAt  *time.Time `json:"last_registered_at,omitempty"`
}

// DeviceRegistration records one token issuance for a device. Only the most
// recent registration is active.
type DeviceRegistration struct {
	ID           int64     `json:"id"`
	SerialNumber string    `json:"serial_number"`
	TokenID      string    `json:"token_id"`
	RegisteredAt time.Time `json:"registered_at"`
	Active       bool      `json:"active"`
}
