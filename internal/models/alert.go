package models

import "time"

// AlertType identifies the threshold rule an alert was raised for.
// Exactly one violation kind per alert.
type AlertType string

const (
	AlertOutOfRangeTemperature    AlertType = "OUT_OF_RANGE_TEMPERATURE"
	AlertOutOfRangeCarbonMonoxide AlertType = "OUT_OF_RANGE_CARBON_MONOXIDE"
	AlertDangerousCarbonMonoxide  AlertType = "DANGEROUS_CARBON_MONOXIDE"
	AlertOutOfRangeHumidity       AlertType = "OUT_OF_RANGE_HUMIDITY"
	AlertPoorHealth               AlertType = "POOR_HEALTH"
)

// IsValid checks if the alert type is a known value.
func (t AlertType) IsValid() bool {
	switch t {
	case AlertOutOfRangeTemperature, AlertOutOfRangeCarbonMonoxide,
		AlertDangerousCarbonMonoxide, AlertOutOfRangeHumidity, AlertPoorHealth:
		return true
	default:
		return false
	}
}

// Measurement identifies the sensor dimension an alert type observes.
type Measurement string

const (
	MeasurementTemperature    Measurement = "temperature"
	MeasurementHumidity       Measurement = "humidity"
	MeasurementCarbonMonoxide Measurement = "carbon_monoxide"
	MeasurementNone           Measurement = ""
)

// Measurement returns the sensor dimension this alert type observes.
// PoorHealth alerts have no numeric dimension.
func (t AlertType) Measurement() Measurement {
	switch t {
	case AlertOutOfRangeTemperature:
		return MeasurementTemperature
	case AlertOutOfRangeHumidity:
		return MeasurementHumidity
	case AlertOutOfRangeCarbonMonoxide, AlertDangerousCarbonMonoxide:
		return MeasurementCarbonMonoxide
	default:
		return MeasurementNone
	}
}

// AlertState is the two-state lifecycle of an alert episode.
type AlertState string

const (
	AlertStateNew      AlertState = "NEW"
	AlertStateResolved AlertState = "RESOLVED"
)

// AlertFilter selects which alert states a log query returns.
type AlertFilter string

const (
	FilterNew      AlertFilter = "new"
	FilterResolved AlertFilter = "resolved"
	FilterAll      AlertFilter = "all"
)

// IsValid checks if the filter is a known value.
func (f AlertFilter) IsValid() bool {
	switch f {
	case FilterNew, FilterResolved, FilterAll:
		return true
	default:
		return false
	}
}

// Alert is one violation episode for a (device, type) pair: a contiguous run
// of a violation from detection through resolution. At most one NEW alert per
// (device, type) exists at any instant; resolved alerts are permanent history.
type Alert struct {
	// Surrogate identifier assigned by the store on insert
	ID int64 `json:"id"`

	// Serial number of the owning device
	SerialNumber string `json:"serial_number"`

	Type AlertType `json:"type"`

	State AlertState `json:"state"`

	// Human-readable description generated at creation; replaced wholesale
	// when the episode reopens
	Message string `json:"message"`

	// Episode start; never changes
	CreatedAt time.Time `json:"created_at"`

	// Timestamp of the latest triggering (or resolving) reading
	ReportedAt time.Time `json:"reported_at"`

	// Set whenever an existing alert row is updated; nil until then
	LastReportedAt *time.Time `json:"last_reported_at,omitempty"`
}

// NewAlert builds an unsaved alert episode for a fresh violation.
func NewAlert(alertType AlertType, serialNumber string, reportedAt time.Time, message string) Alert {
	return Alert{
		SerialNumber: serialNumber,
		Type:         alertType,
		State:        AlertStateNew,
		Message:      message,
		CreatedAt:    reportedAt,
		ReportedAt:   reportedAt,
	}
}

// Touch applies an update to an existing alert row: state, message, and the
// reported timestamps advance to the given reading time.
func (a *Alert) Touch(reportedAt time.Time, message string, state AlertState) {
	a.State = state
	a.Message = message
	a.ReportedAt = reportedAt
	ts := reportedAt
	a.LastReportedAt = &ts
}

// AlertLogItem is the projected client view of one alert, joined with the
// min/max observed values of its measurement dimension.
type AlertLogItem struct {
	Type           AlertType  `json:"type"`
	State          AlertState `json:"state"`
	Message        string     `json:"message"`
	MinValue       float64    `json:"min_value"`
	MaxValue       float64    `json:"max_value"`
	CreatedAt      time.Time  `json:"created_at"`
	ReportedAt     time.Time  `json:"reported_at"`
	LastReportedAt *time.Time `json:"last_reported_at,omitempty"`
}
