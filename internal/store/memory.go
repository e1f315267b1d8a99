package store

import (
	"context"
	"sort"
	"sync"

	"airwatch/internal/models"
)

// Memory is an in-memory Store used for tests and local development.
type Memory struct {
	mu sync.RWMutex

	nextAlertID   int64
	nextReadingID int64
	nextRegID     int64

	devices       map[string]*models.Device
	registrations []models.DeviceRegistration
	readings      []models.DeviceReading
	alerts        []models.Alert
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		devices: make(map[string]*models.Device),
	}
}

func (s *Memory) FindLatestAlert(ctx context.Context, serialNumber string, alertType models.AlertType) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Alert
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.SerialNumber != serialNumber || a.Type != alertType {
			continue
		}
		if latest == nil || a.ReportedAt.After(latest.ReportedAt) ||
			(a.ReportedAt.Equal(latest.ReportedAt) && a.ID > latest.ID) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Memory) FindOpenAlerts(ctx context.Context, serialNumber string, excludeTypes []models.AlertType) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[models.AlertType]bool, len(excludeTypes))
	for _, t := range excludeTypes {
		excluded[t] = true
	}

	var out []models.Alert
	for _, a := range s.alerts {
		if a.SerialNumber == serialNumber && a.State == models.AlertStateNew && !excluded[a.Type] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Memory) InsertAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAlertID++
	alert.ID = s.nextAlertID
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *Memory) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alert.ID {
			s.alerts[i] = *alert
			return nil
		}
	}
	return nil
}

func (s *Memory) CountAlerts(ctx context.Context, serialNumber string, filter models.AlertFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.alerts {
		if a.SerialNumber == serialNumber && matchesFilter(a.State, filter) {
			count++
		}
	}
	return count, nil
}

func (s *Memory) QueryAlertsPage(ctx context.Context, serialNumber string, filter models.AlertFilter, skip, take int) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Alert
	for _, a := range s.alerts {
		if a.SerialNumber == serialNumber && matchesFilter(a.State, filter) {
			matched = append(matched, a)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ReportedAt.Equal(matched[j].ReportedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ReportedAt.After(matched[j].ReportedAt)
	})

	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if take < len(matched) {
		matched = matched[:take]
	}
	return matched, nil
}

func (s *Memory) SaveReading(ctx context.Context, reading *models.DeviceReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReadingID++
	reading.ID = s.nextReadingID
	s.readings = append(s.readings, *reading)
	return nil
}

func (s *Memory) MinMaxReading(ctx context.Context, serialNumber string, m models.Measurement) (float64, float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var minVal, maxVal float64
	found := false
	for _, r := range s.readings {
		if r.SerialNumber != serialNumber {
			continue
		}
		v, ok := measurementValue(r, m)
		if !ok {
			continue
		}
		if !found {
			minVal, maxVal = v, v
			found = true
			continue
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal, found, nil
}

func (s *Memory) DeviceExists(ctx context.Context, serialNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.devices[serialNumber]
	return ok, nil
}

func (s *Memory) FindDevice(ctx context.Context, serialNumber, sharedSecret string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[serialNumber]
	if !ok || d.SharedSecret != sharedSecret {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *Memory) InsertDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *device
	s.devices[device.SerialNumber] = &cp
	return nil
}

func (s *Memory) AddRegistration(ctx context.Context, reg *models.DeviceRegistration, firmwareVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.registrations {
		if s.registrations[i].SerialNumber == reg.SerialNumber {
			s.registrations[i].Active = false
		}
	}

	s.nextRegID++
	reg.ID = s.nextRegID
	reg.Active = true
	s.registrations = append(s.registrations, *reg)

	if d, ok := s.devices[reg.SerialNumber]; ok {
		ts := reg.RegisteredAt
		if d.FirstRegisteredAt == nil {
			first := ts
			d.FirstRegisteredAt = &first
		}
		last := ts
		d.LastRegisteredAt = &last
		d.FirmwareVersion = firmwareVersion
	}
	return nil
}

func (s *Memory) Ping(ctx context.Context) error { return nil }

func (s *Memory) Close() error { return nil }

func matchesFilter(state models.AlertState, filter models.AlertFilter) bool {
	switch filter {
	case models.FilterNew:
		return state == models.AlertStateNew
	case models.FilterResolved:
		return state == models.AlertStateResolved
	default:
		return true
	}
}

func measurementValue(r models.DeviceReading, m models.Measurement) (float64, bool) {
	switch m {
	case models.MeasurementTemperature:
		return r.Temperature, true
	case models.MeasurementHumidity:
		return r.Humidity, true
	case models.MeasurementCarbonMonoxide:
		return r.CarbonMonoxide, true
	default:
		return 0, false
	}
}
