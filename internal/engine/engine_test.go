package engine

import (
	"context"
	"testing"
	"time"

	"airwatch/internal/events"
	"airwatch/internal/models"
	"airwatch/internal/store"
)

const testSerial = "AC-2024-0001"

// capturePublisher records emitted transitions in order.
type capturePublisher struct {
	events []events.AlertEvent
}

func (c *capturePublisher) Publish(ev events.AlertEvent) { c.events = append(c.events, ev) }
func (c *capturePublisher) Close() error                 { return nil }

func (c *capturePublisher) transitions() []events.Transition {
	out := make([]events.Transition, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Transition
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *store.Memory, *capturePublisher) {
	t.Helper()

	mem := store.NewMemory()
	if err := mem.InsertDevice(context.Background(), &models.Device{
		SerialNumber: testSerial,
		SharedSecret: "secret",
	}); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	pub := &capturePublisher{}
	return New(mem, testThresholds(), pub), mem, pub
}

func allAlerts(t *testing.T, mem *store.Memory, filter models.AlertFilter) []models.Alert {
	t.Helper()
	alerts, err := mem.QueryAlertsPage(context.Background(), testSerial, filter, 0, 100)
	if err != nil {
		t.Fatalf("querying alerts: %v", err)
	}
	return alerts
}

func TestSubmitReadingsInRangePersistsNoAlerts(t *testing.T) {
	eng, mem, pub := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	readings := []models.DeviceReading{
		okReading(t0),
		okReading(t0.Add(5 * time.Minute)),
	}
	if err := eng.SubmitReadings(context.Background(), testSerial, readings); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	if got := allAlerts(t, mem, models.FilterAll); len(got) != 0 {
		t.Fatalf("in-range readings produced %d alerts, want 0", len(got))
	}
	if len(pub.events) != 0 {
		t.Fatalf("in-range readings emitted %d events, want 0", len(pub.events))
	}
}

func TestSingleViolationCreatesNewAlert(t *testing.T) {
	eng, mem, pub := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	r := okReading(t0)
	r.Temperature = 30
	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{r}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	alerts := allAlerts(t, mem, models.FilterAll)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}

	a := alerts[0]
	if a.Type != models.AlertOutOfRangeTemperature {
		t.Errorf("alert type = %s", a.Type)
	}
	if a.State != models.AlertStateNew {
		t.Errorf("alert state = %s, want NEW", a.State)
	}
	if !a.ReportedAt.Equal(t0) {
		t.Errorf("ReportedAt = %v, want reading timestamp %v", a.ReportedAt, t0)
	}
	if !a.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want reading timestamp %v", a.CreatedAt, t0)
	}
	if a.LastReportedAt != nil {
		t.Errorf("LastReportedAt = %v, want nil at creation", a.LastReportedAt)
	}

	if got := pub.transitions(); len(got) != 1 || got[0] != events.TransitionCreated {
		t.Errorf("transitions = %v, want [created]", got)
	}
}

func TestViolationWithinWindowExtendsSameRow(t *testing.T) {
	eng, mem, pub := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	first := okReading(t0)
	first.Temperature = 30
	second := okReading(t0.Add(10 * time.Minute))
	second.Temperature = 31

	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{first, second}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	alerts := allAlerts(t, mem, models.FilterAll)
	if len(alerts) != 1 {
		t.Fatalf("got %d alert rows, want 1", len(alerts))
	}

	a := alerts[0]
	if a.State != models.AlertStateNew {
		t.Errorf("state = %s, want NEW", a.State)
	}
	if !a.ReportedAt.Equal(second.RecordedAt) {
		t.Errorf("ReportedAt = %v, want %v", a.ReportedAt, second.RecordedAt)
	}
	if !a.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want episode start %v", a.CreatedAt, t0)
	}
	if a.LastReportedAt == nil || !a.LastReportedAt.Equal(second.RecordedAt) {
		t.Errorf("LastReportedAt = %v, want %v", a.LastReportedAt, second.RecordedAt)
	}

	want := []events.Transition{events.TransitionCreated, events.TransitionExtended}
	got := pub.transitions()
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transitions = %v, want %v", got, want)
			break
		}
	}
}

func TestResolvedAlertReopensWithinWindow(t *testing.T) {
	eng, mem, pub := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	first := okReading(t0)
	first.Temperature = 30
	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{first}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	// Resolve the episode out of band, then report a fresh violation inside
	// the window.
	alerts := allAlerts(t, mem, models.FilterAll)
	alerts[0].State = models.AlertStateResolved
	if err := mem.UpdateAlert(context.Background(), &alerts[0]); err != nil {
		t.Fatalf("UpdateAlert: %v", err)
	}

	second := okReading(t0.Add(5 * time.Minute))
	second.Temperature = 31
	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{second}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	alerts = allAlerts(t, mem, models.FilterAll)
	if len(alerts) != 1 {
		t.Fatalf("got %d alert rows, want 1 (reopened, not recreated)", len(alerts))
	}
	if alerts[0].State != models.AlertStateNew {
		t.Errorf("state = %s, want NEW after reopening", alerts[0].State)
	}

	got := pub.transitions()
	if got[len(got)-1] != events.TransitionReopened {
		t.Errorf("last transition = %s, want reopened", got[len(got)-1])
	}
}

func TestViolationBeyondWindowStartsNewEpisode(t *testing.T) {
	eng, mem, _ := newTestEngine(t)
	t0 := time.Now().Add(-2 * time.Hour)

	first := okReading(t0)
	first.Temperature = 30
	second := okReading(t0.Add(40 * time.Minute)) // window is 15min
	second.Temperature = 32

	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{first, second}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	resolved := allAlerts(t, mem, models.FilterResolved)
	open := allAlerts(t, mem, models.FilterNew)

	if len(resolved) != 1 {
		t.Fatalf("got %d resolved alerts, want 1 (lapsed episode)", len(resolved))
	}
	if len(open) != 1 {
		t.Fatalf("got %d open alerts, want 1 (fresh episode)", len(open))
	}
	if resolved[0].ID == open[0].ID {
		t.Error("lapsed and fresh episodes share a row, want distinct rows")
	}
	if !open[0].ReportedAt.Equal(second.RecordedAt) {
		t.Errorf("fresh episode ReportedAt = %v, want %v", open[0].ReportedAt, second.RecordedAt)
	}
}

func TestStaleResolverClosesClearedAlert(t *testing.T) {
	eng, mem, pub := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	// Open two alerts: temperature and humidity.
	first := okReading(t0)
	first.Temperature = 30
	first.Humidity = 80
	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{first}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	// Temperature recovers, humidity keeps violating.
	second := okReading(t0.Add(5 * time.Minute))
	second.Humidity = 85
	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{second}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	open := allAlerts(t, mem, models.FilterNew)
	resolved := allAlerts(t, mem, models.FilterResolved)

	if len(open) != 1 || open[0].Type != models.AlertOutOfRangeHumidity {
		t.Fatalf("open alerts = %+v, want only the humidity alert", open)
	}
	if len(resolved) != 1 || resolved[0].Type != models.AlertOutOfRangeTemperature {
		t.Fatalf("resolved alerts = %+v, want only the temperature alert", resolved)
	}
	if !resolved[0].ReportedAt.Equal(second.RecordedAt) {
		t.Errorf("resolved ReportedAt = %v, want resolving reading timestamp %v",
			resolved[0].ReportedAt, second.RecordedAt)
	}
	if resolved[0].Message == "" {
		t.Error("stale resolution should keep the existing message")
	}

	got := pub.transitions()
	if got[len(got)-1] != events.TransitionResolved {
		t.Errorf("last transition = %s, want resolved", got[len(got)-1])
	}
}

// The full episode walk-through: create, extend, lapse into a second
// episode, then resolve it.
func TestTemperatureEpisodeLifecycle(t *testing.T) {
	eng, mem, _ := newTestEngine(t)
	ctx := context.Background()
	t0 := time.Now().Add(-2 * time.Hour)

	submit := func(offset time.Duration, temp float64) {
		t.Helper()
		r := okReading(t0.Add(offset))
		r.Temperature = temp
		if err := eng.SubmitReadings(ctx, testSerial, []models.DeviceReading{r}); err != nil {
			t.Fatalf("SubmitReadings at %v: %v", offset, err)
		}
	}

	// t0: temp=30 creates the first episode.
	submit(0, 30)
	open := allAlerts(t, mem, models.FilterNew)
	if len(open) != 1 || !open[0].ReportedAt.Equal(t0) {
		t.Fatalf("after t0: open = %+v", open)
	}
	firstID := open[0].ID

	// t0+10: temp=31 extends the same row.
	submit(10*time.Minute, 31)
	open = allAlerts(t, mem, models.FilterNew)
	if len(open) != 1 || open[0].ID != firstID {
		t.Fatalf("after t0+10: expected same row extended, got %+v", open)
	}
	if !open[0].ReportedAt.Equal(t0.Add(10 * time.Minute)) {
		t.Fatalf("after t0+10: ReportedAt = %v", open[0].ReportedAt)
	}

	// t0+40: gap of 30min > 15min window. Episode 1 lapses, episode 2 opens.
	submit(40*time.Minute, 32)
	open = allAlerts(t, mem, models.FilterNew)
	resolved := allAlerts(t, mem, models.FilterResolved)
	if len(open) != 1 || len(resolved) != 1 {
		t.Fatalf("after t0+40: open=%d resolved=%d, want 1/1", len(open), len(resolved))
	}
	if open[0].ID == firstID {
		t.Fatal("after t0+40: expected a fresh row for the new episode")
	}
	secondID := open[0].ID

	// t0+45: temp=20 back in range resolves episode 2 via the stale sweep.
	submit(45*time.Minute, 20)
	open = allAlerts(t, mem, models.FilterNew)
	resolved = allAlerts(t, mem, models.FilterResolved)
	if len(open) != 0 {
		t.Fatalf("after t0+45: open = %+v, want none", open)
	}
	if len(resolved) != 2 {
		t.Fatalf("after t0+45: resolved = %d rows, want 2", len(resolved))
	}
	for _, a := range resolved {
		if a.ID == secondID && !a.ReportedAt.Equal(t0.Add(45*time.Minute)) {
			t.Errorf("episode 2 ReportedAt = %v, want resolving timestamp", a.ReportedAt)
		}
	}
}

func TestSubmitReadingsSortsBatchByRecordedAt(t *testing.T) {
	eng, mem, _ := newTestEngine(t)
	t0 := time.Now().Add(-time.Hour)

	// Out-of-order batch: the later reading first. Processed in timestamp
	// order the episode ends extended, not reopened twice.
	later := okReading(t0.Add(10 * time.Minute))
	later.Temperature = 31
	earlier := okReading(t0)
	earlier.Temperature = 30

	if err := eng.SubmitReadings(context.Background(), testSerial, []models.DeviceReading{later, earlier}); err != nil {
		t.Fatalf("SubmitReadings: %v", err)
	}

	alerts := allAlerts(t, mem, models.FilterAll)
	if len(alerts) != 1 {
		t.Fatalf("got %d alert rows, want 1", len(alerts))
	}
	if !alerts[0].ReportedAt.Equal(later.RecordedAt) {
		t.Errorf("ReportedAt = %v, want the chronologically last reading %v",
			alerts[0].ReportedAt, later.RecordedAt)
	}
}

func TestSubmitReadingsEmptyBatch(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	if err := eng.SubmitReadings(context.Background(), testSerial, nil); err != nil {
		t.Fatalf("empty batch should be a no-op, got %v", err)
	}
}
