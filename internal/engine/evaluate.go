package engine

import (
	"fmt"

	"airwatch/internal/config"
	"airwatch/internal/models"
)

// PotentialAlerts maps one reading to its violation candidates: unsaved
// alerts, one per breached threshold rule. Pure and order-stable
// (temperature, CO range, CO danger, humidity, health) so downstream
// processing order is deterministic. A reading yields zero to five
// candidates; the CO range and CO danger checks are independent and can both
// fire for the same sample.
func PotentialAlerts(r models.DeviceReading, t config.Thresholds) []models.Alert {
	var out []models.Alert

	if !inRange(r.Temperature, t.TemperatureMin, t.TemperatureMax) {
		out = append(out, models.NewAlert(
			models.AlertOutOfRangeTemperature,
			r.SerialNumber,
			r.RecordedAt,
			fmt.Sprintf("Sensor %s reported out-of-range temperature", r.SerialNumber)))
	}

	if !inRange(r.CarbonMonoxide, t.CarbonMonoxideMin, t.CarbonMonoxideMax) {
		out = append(out, models.NewAlert(
			models.AlertOutOfRangeCarbonMonoxide,
			r.SerialNumber,
			r.RecordedAt,
			fmt.Sprintf("Sensor %s reported out-of-range carbon monoxide levels", r.SerialNumber)))
	}

	if r.CarbonMonoxide >= t.CarbonMonoxideDanger {
		out = append(out, models.NewAlert(
			models.AlertDangerousCarbonMonoxide,
			r.SerialNumber,
			r.RecordedAt,
			fmt.Sprintf("Sensor %s reported carbon monoxide above the danger limit", r.SerialNumber)))
	}

	if !inRange(r.Humidity, t.HumidityMin, t.HumidityMax) {
		out = append(out, models.NewAlert(
			models.AlertOutOfRangeHumidity,
			r.SerialNumber,
			r.RecordedAt,
			fmt.Sprintf("Sensor %s reported out-of-range humidity levels", r.SerialNumber)))
	}

	if r.Health != models.HealthOK {
		out = append(out, models.NewAlert(
			models.AlertPoorHealth,
			r.SerialNumber,
			r.RecordedAt,
			fmt.Sprintf("Sensor %s is reporting a health problem: %s", r.SerialNumber, r.Health)))
	}

	return out
}

// conditionCleared reports whether the reading shows the alert's condition
// back in range. The inverse of the per-type checks above.
func conditionCleared(alertType models.AlertType, r models.DeviceReading, t config.Thresholds) bool {
	switch alertType {
	case models.AlertOutOfRangeTemperature:
		return inRange(r.Temperature, t.TemperatureMin, t.TemperatureMax)
	case models.AlertOutOfRangeCarbonMonoxide:
		return inRange(r.CarbonMonoxide, t.CarbonMonoxideMin, t.CarbonMonoxideMax)
	case models.AlertDangerousCarbonMonoxide:
		return r.CarbonMonoxide < t.CarbonMonoxideDanger
	case models.AlertOutOfRangeHumidity:
		return inRange(r.Humidity, t.HumidityMin, t.HumidityMax)
	case models.AlertPoorHealth:
		return r.Health == models.HealthOK
	default:
		return false
	}
}

func inRange(v, min, max float64) bool {
	return v >= min && v <= max
}
