package engine

import (
	"context"

	"airwatch/internal/models"
)

// GetAlertLog returns one page of alert summaries for a device, joined with
// the min/max observed values of each alert's measurement dimension across
// the device's entire reading history. Returns models.ErrDeviceNotFound when
// the device is unknown; a known device with no matching alerts yields an
// empty page with a zero total.
func (e *Engine) GetAlertLog(ctx context.Context, serialNumber string, filter models.AlertFilter, pageNumber, pageSize int) (models.Page[models.AlertLogItem], error) {
	var page models.Page[models.AlertLogItem]

	exists, err := e.store.DeviceExists(ctx, serialNumber)
	if err != nil {
		return page, err
	}
	if !exists {
		return page, models.ErrDeviceNotFound
	}

	if pageNumber <= 0 {
		pageNumber = 1
	}
	pageSize = models.ClampPageSize(pageSize)

	total, err := e.store.CountAlerts(ctx, serialNumber, filter)
	if err != nil {
		return page, err
	}

	skip := pageSize * (pageNumber - 1)
	alerts, err := e.store.QueryAlertsPage(ctx, serialNumber, filter, skip, pageSize)
	if err != nil {
		return page, err
	}

	// One min/max lookup per distinct dimension on the page.
	type bounds struct {
		min, max float64
		ok       bool
	}
	cache := make(map[models.Measurement]bounds, 3)

	items := make([]models.AlertLogItem, 0, len(alerts))
	for _, a := range alerts {
		item := models.AlertLogItem{
			Type:           a.Type,
			State:          a.State,
			Message:        a.Message,
			CreatedAt:      a.CreatedAt,
			ReportedAt:     a.ReportedAt,
			LastReportedAt: a.LastReportedAt,
		}

		if m := a.Type.Measurement(); m != models.MeasurementNone {
			b, cached := cache[m]
			if !cached {
				b.min, b.max, b.ok, err = e.store.MinMaxReading(ctx, serialNumber, m)
				if err != nil {
					return page, err
				}
				cache[m] = b
			}
			if b.ok {
				item.MinValue = b.min
				item.MaxValue = b.max
			}
		}

		items = append(items, item)
	}

	page.Items = items
	page.TotalCount = total
	page.PageNumber = pageNumber
	page.PageSize = pageSize
	return page, nil
}
