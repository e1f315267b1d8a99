package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"airwatch/internal/models"
)

func TestGetAlertLogUnknownDevice(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.GetAlertLog(context.Background(), "NO-SUCH-DEVICE", models.FilterAll, 1, 10)
	if !errors.Is(err, models.ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestGetAlertLogEmptyPageForKnownDevice(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	page, err := eng.GetAlertLog(context.Background(), testSerial, models.FilterNew, 1, 10)
	if err != nil {
		t.Fatalf("GetAlertLog: %v", err)
	}
	if page.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", page.TotalCount)
	}
	if len(page.Items) != 0 {
		t.Errorf("Items = %d, want 0", len(page.Items))
	}
	if page.PageNumber != 1 {
		t.Errorf("PageNumber = %d, want 1", page.PageNumber)
	}
}

func TestGetAlertLogClampsPageSize(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	page, err := eng.GetAlertLog(context.Background(), testSerial, models.FilterAll, 1, 1000)
	if err != nil {
		t.Fatalf("GetAlertLog: %v", err)
	}
	if page.PageSize != models.MaxPageSize {
		t.Errorf("PageSize = %d, want clamp to %d", page.PageSize, models.MaxPageSize)
	}
}

func TestGetAlertLogMinMaxProjection(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour)

	readings := []models.DeviceReading{}
	for i, temp := range []float64{30, 35, 28} {
		r := okReading(t0.Add(time.Duration(i) * 5 * time.Minute))
		r.Temperature = temp
		readings = append(readings, r)
	}
	if err := eng.SubmitReadings(ctx, testSerial, readings); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	page, err := eng.GetAlertLog(ctx, testSerial, models.FilterNew, 1, 10)
	if err != nil {
		t.Fatalf("GetAlertLog: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("Items = %d, want 1", len(page.Items))
	}

	item := page.Items[0]
	if item.Type != models.AlertOutOfRangeTemperature {
		t.Fatalf("item type = %s", item.Type)
	}
	// Aggregation covers the device's entire reading history for the
	// alert's dimension.
	if item.MinValue != 28 || item.MaxValue != 35 {
		t.Errorf("min/max = %.1f/%.1f, want 28/35", item.MinValue, item.MaxValue)
	}
}

func TestGetAlertLogPoorHealthHasNoBounds(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	r := okReading(time.Now().Add(-time.Hour))
	r.Health = models.HealthNeedsService
	if err := eng.SubmitReadings(ctx, testSerial, []models.DeviceReading{r}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	page, err := eng.GetAlertLog(ctx, testSerial, models.FilterNew, 1, 10)
	if err != nil {
		t.Fatalf("GetAlertLog: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("Items = %d, want 1", len(page.Items))
	}
	if page.Items[0].MinValue != 0 || page.Items[0].MaxValue != 0 {
		t.Errorf("health alert min/max = %.1f/%.1f, want zeroes",
			page.Items[0].MinValue, page.Items[0].MaxValue)
	}
}

func TestGetAlertLogStateFilter(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	t0 := time.Now().Add(-2 * time.Hour)

	// First episode lapses, second stays open: one resolved, one new row.
	first := okReading(t0)
	first.Temperature = 30
	second := okReading(t0.Add(40 * time.Minute))
	second.Temperature = 31
	if err := eng.SubmitReadings(ctx, testSerial, []models.DeviceReading{first, second}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	tests := []struct {
		filter models.AlertFilter
		want   int
	}{
		{models.FilterNew, 1},
		{models.FilterResolved, 1},
		{models.FilterAll, 2},
	}
	for _, tt := range tests {
		page, err := eng.GetAlertLog(ctx, testSerial, tt.filter, 1, 10)
		if err != nil {
			t.Fatalf("GetAlertLog(%s): %v", tt.filter, err)
		}
		if page.TotalCount != tt.want {
			t.Errorf("filter %s: TotalCount = %d, want %d", tt.filter, page.TotalCount, tt.want)
		}
	}
}

func TestGetAlertLogPagination(t *testing.T) {
	eng, mem, _ := newTestEngine(t)
	ctx := context.Background()
	t0 := time.Now().Add(-24 * time.Hour)

	// Three resolved episodes of the same type, far apart in time.
	for i := 0; i < 3; i++ {
		r := okReading(t0.Add(time.Duration(i) * time.Hour))
		r.Temperature = 30
		if err := eng.SubmitReadings(ctx, testSerial, []models.DeviceReading{r}); err != nil {
			t.Fatalf("SubmitReadings: %v", err)
		}
	}

	all, err := mem.CountAlerts(ctx, testSerial, models.FilterAll)
	if err != nil || all != 3 {
		t.Fatalf("CountAlerts = %d (%v), want 3", all, err)
	}

	page, err := eng.GetAlertLog(ctx, testSerial, models.FilterAll, 2, 2)
	if err != nil {
		t.Fatalf("GetAlertLog: %v", err)
	}
	if page.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", page.TotalCount)
	}
	if len(page.Items) != 1 {
		t.Errorf("page 2 with size 2 has %d items, want 1", len(page.Items))
	}
	if page.TotalPages() != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages())
	}
	if page.HasNext() {
		t.Error("last page should not have next")
	}
	if !page.HasPrevious() {
		t.Error("page 2 should have previous")
	}
}
