package store

import (
	"context"

	"airwatch/internal/models"
)

// AlertStore is the engine's only interaction with alert persistence.
type AlertStore interface {
	// FindLatestAlert returns the most recently reported alert for the
	// (device, type) pair, open or closed, or nil when none exists.
	FindLatestAlert(ctx context.Context, serialNumber string, alertType models.AlertType) (*models.Alert, error)

	// FindOpenAlerts returns every NEW alert for the device whose type is
	// not in excludeTypes.
	FindOpenAlerts(ctx context.Context, serialNumber string, excludeTypes []models.AlertType) ([]models.Alert, error)

	// InsertAlert persists a new alert row and assigns its ID.
	InsertAlert(ctx context.Context, alert *models.Alert) error

	// UpdateAlert persists mutations to an existing alert row.
	UpdateAlert(ctx context.Context, alert *models.Alert) error

	// CountAlerts returns the number of alerts matching the state filter.
	CountAlerts(ctx context.Context, serialNumber string, filter models.AlertFilter) (int, error)

	// QueryAlertsPage returns one page of alerts matching the state filter,
	// most recently reported first.
	QueryAlertsPage(ctx context.Context, serialNumber string, filter models.AlertFilter, skip, take int) ([]models.Alert, error)
}

// ReadingStore persists sensor readings and answers the min/max projection.
type ReadingStore interface {
	// SaveReading persists a reading and assigns its ID.
	SaveReading(ctx context.Context, reading *models.DeviceReading) error

	// MinMaxReading returns the minimum and maximum observed value of one
	// measurement dimension across the device's entire reading history.
	// ok is false when the device has no readings.
	MinMaxReading(ctx context.Context, serialNumber string, m models.Measurement) (minVal, maxVal float64, ok bool, err error)
}

// DeviceStore manages device identity and registrations.
type DeviceStore interface {
	// DeviceExists reports whether a device with the serial number is provisioned.
	DeviceExists(ctx context.Context, serialNumber string) (bool, error)

	// FindDevice returns the device matching serial number and shared
	// secret, or nil when no such device exists.
	FindDevice(ctx context.Context, serialNumber, sharedSecret string) (*models.Device, error)

	// InsertDevice provisions a new device.
	InsertDevice(ctx context.Context, device *models.Device) error

	// AddRegistration records a token issuance: previous registrations are
	// deactivated, the device's firmware version and registration dates are
	// updated, and the new registration is stored active.
	AddRegistration(ctx context.Context, reg *models.DeviceRegistration, firmwareVersion string) error
}

// Store aggregates the persistence adapters behind one handle.
type Store interface {
	AlertStore
	ReadingStore
	DeviceStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
