package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"airwatch/internal/config"
	"airwatch/internal/events"
	"airwatch/internal/logger"
	"airwatch/internal/metrics"
	"airwatch/internal/models"
	"airwatch/internal/store"
)

// Engine turns a stream of readings into a deduplicated, correctly-timed set
// of open/closed alert episodes. Readings for one device must be submitted by
// at most one caller at a time; the windowing is order-sensitive. Readings
// for different devices are independent.
type Engine struct {
	store      store.Store
	thresholds config.Thresholds
	publisher  events.Publisher
	log        zerolog.Logger
}

// New constructs an Engine. Thresholds are taken by value and never change
// after construction.
func New(st store.Store, thresholds config.Thresholds, publisher events.Publisher) *Engine {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	return &Engine{
		store:      st,
		thresholds: thresholds,
		publisher:  publisher,
		log:        logger.WithComponent("engine"),
	}
}

// SubmitReadings persists a batch of readings for one device and reconciles
// alerts reading-by-reading in ascending recorded order. All writes for one
// reading complete before the next reading is evaluated; a persistence
// failure mid-batch leaves earlier readings' mutations committed.
func (e *Engine) SubmitReadings(ctx context.Context, serialNumber string, readings []models.DeviceReading) error {
	if len(readings) == 0 {
		return nil
	}

	sorted := make([]models.DeviceReading, len(readings))
	copy(sorted, readings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})

	now := time.Now().UTC()
	for i := range sorted {
		r := &sorted[i]
		r.SerialNumber = serialNumber
		if r.ReceivedAt.IsZero() {
			r.ReceivedAt = now
		}

		if err := e.processReading(ctx, *r); err != nil {
			return fmt.Errorf("processing reading recorded at %s: %w", r.RecordedAt.Format(time.RFC3339), err)
		}
	}

	return nil
}

// processReading runs the two-pass design for one reading: save it, evaluate
// and reconcile its violation candidates, then sweep-and-resolve the open
// alerts the reading no longer violates.
func (e *Engine) processReading(ctx context.Context, r models.DeviceReading) error {
	if err := e.store.SaveReading(ctx, &r); err != nil {
		return err
	}

	candidates := PotentialAlerts(r, e.thresholds)

	touched := make([]models.AlertType, 0, len(candidates))
	for _, cand := range candidates {
		if err := e.reconcile(ctx, cand); err != nil {
			return err
		}
		touched = append(touched, cand.Type)
	}

	return e.resolveStale(ctx, r, touched)
}

// reconcile applies one violation candidate against the most relevant
// existing alert of the same (device, type), enforcing the episode window.
func (e *Engine) reconcile(ctx context.Context, cand models.Alert) error {
	existing, err := e.store.FindLatestAlert(ctx, cand.SerialNumber, cand.Type)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := e.store.InsertAlert(ctx, &cand); err != nil {
			return err
		}
		e.emit(events.TransitionCreated, cand)
		return nil
	}

	gap := cand.ReportedAt.Sub(existing.ReportedAt)
	if gap <= e.thresholds.Window() {
		// Same episode continuing: extend in place, reopening if it had
		// been resolved in the meantime.
		transition := events.TransitionExtended
		state := existing.State
		if state == models.AlertStateResolved {
			state = models.AlertStateNew
			transition = events.TransitionReopened
		}

		existing.Touch(cand.ReportedAt, cand.Message, state)
		if err := e.store.UpdateAlert(ctx, existing); err != nil {
			return err
		}
		e.emit(transition, *existing)
		return nil
	}

	// The prior episode lapsed: close it and open a fresh one with its own
	// row rather than reusing the old id. ReportedAt stays at the lapsed
	// episode's last violation; only extension advances it.
	existing.State = models.AlertStateResolved
	ts := cand.ReportedAt
	existing.LastReportedAt = &ts
	if err := e.store.UpdateAlert(ctx, existing); err != nil {
		return err
	}
	e.emit(events.TransitionLapsed, *existing)

	if err := e.store.InsertAlert(ctx, &cand); err != nil {
		return err
	}
	e.emit(events.TransitionCreated, cand)
	return nil
}

// resolveStale sweeps every open alert for the device whose type was not
// among the reading's candidates and resolves those whose condition has
// cleared. The existing message is kept.
func (e *Engine) resolveStale(ctx context.Context, r models.DeviceReading, touched []models.AlertType) error {
	open, err := e.store.FindOpenAlerts(ctx, r.SerialNumber, touched)
	if err != nil {
		return err
	}

	for i := range open {
		alert := &open[i]
		if !conditionCleared(alert.Type, r, e.thresholds) {
			continue
		}

		alert.Touch(r.RecordedAt, alert.Message, models.AlertStateResolved)
		if err := e.store.UpdateAlert(ctx, alert); err != nil {
			return err
		}
		e.emit(events.TransitionResolved, *alert)
	}

	return nil
}

func (e *Engine) emit(transition events.Transition, alert models.Alert) {
	metrics.AlertTransitionsTotal.WithLabelValues(string(transition), string(alert.Type)).Inc()

	e.log.Info().
		Str("serial_number", alert.SerialNumber).
		Str("alert_type", string(alert.Type)).
		Str("transition", string(transition)).
		Int64("alert_id", alert.ID).
		Time("reported_at", alert.ReportedAt).
		Msg("alert transition applied")

	e.publisher.Publish(events.AlertEvent{
		Transition:   transition,
		AlertID:      alert.ID,
		SerialNumber: alert.SerialNumber,
		Type:         alert.Type,
		State:        alert.State,
		Message:      alert.Message,
		ReportedAt:   alert.ReportedAt,
		EmittedAt:    time.Now().UTC(),
	})
}
