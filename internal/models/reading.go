package models

import (
	"errors"
	"time"
)

// DeviceHealth represents the self-reported health of a device.
type DeviceHealth string

const (
	HealthOK           DeviceHealth = "OK"
	HealthNeedsFilter  DeviceHealth = "NEEDS_FILTER"
	HealthNeedsService DeviceHealth = "NEEDS_SERVICE"
)

// IsValid checks if the health status is a known value.
func (h DeviceHealth) IsValid() bool {
	switch h {
	case HealthOK, HealthNeedsFilter, HealthNeedsService:
		return true
	default:
		return false
	}
}

// DeviceReading is one immutable sensor sample reported by a device.
// Created on ingestion and never mutated afterwards.
type DeviceReading struct {
	// Surrogate identifier assigned by the store
	ID int64 `json:"id"`

	// Serial number of the owning device
	SerialNumber string `json:"serial_number"`

	// Temperature in degrees Celsius
	Temperature float64 `json:"temperature"`

	// Relative humidity percentage
	Humidity float64 `json:"humidity"`

	// Carbon monoxide concentration in ppm
	CarbonMonoxide float64 `json:"carbon_monoxide"`

	// Self-reported device health
	Health DeviceHealth `json:"health"`

	// Timestamp asserted by the device
	RecordedAt time.Time `json:"recorded_at"`

	// Timestamp asserted by the server on receipt
	ReceivedAt time.Time `json:"received_at"`
}

// Validation errors
var (
	ErrEmptySerialNumber = errors.New("serial number cannot be empty")
	ErrZeroRecordedAt    = errors.New("recorded timestamp cannot be zero")
	ErrFutureRecordedAt  = errors.New("recorded timestamp cannot be in the future")
	ErrInvalidHealth     = errors.New("invalid device health value")
	ErrValueOutOfBounds  = errors.New("sensor value outside representable bounds")
)

// Sensor values are persisted as decimal(5,2); anything beyond that is a
// malformed payload rather than a threshold violation.
const MaxSensorValue = 999.99

// Validate checks if the DeviceReading is a well-formed sample. Out-of-range
// measurements are not errors here; they are the trigger condition for alerts.
func (r *DeviceReading) Validate() error {
	if r.SerialNumber == "" {
		return ErrEmptySerialNumber
	}

	if r.RecordedAt.IsZero() {
		return ErrZeroRecordedAt
	}

	if r.RecordedAt.After(time.Now().Add(time.Minute)) {
		return ErrFutureRecordedAt
	}

	if !r.Health.IsValid() {
		return ErrInvalidHealth
	}

	for _, v := range []float64{r.Temperature, r.Humidity, r.CarbonMonoxide} {
		if v < -MaxSensorValue || v > MaxSensorValue {
			return ErrValueOutOfBounds
		}
	}

	return nil
}
