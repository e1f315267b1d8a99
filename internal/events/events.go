package events

import (
	"time"

	"airwatch/internal/models"
)

// Transition names one alert lifecycle change applied by the engine.
type Transition string

const (
	// TransitionCreated: a fresh episode was opened.
	TransitionCreated Transition = "created"
	// TransitionExtended: an open episode was extended within the window.
	TransitionExtended Transition = "extended"
	// TransitionReopened: a resolved episode saw a fresh violation within the window.
	TransitionReopened Transition = "reopened"
	// TransitionLapsed: an episode was closed because the gap exceeded the window.
	TransitionLapsed Transition = "lapsed"
	// TransitionResolved: an open episode was closed by the stale resolver.
	TransitionResolved Transition = "resolved"
)

// AlertEvent is one alert transition published to the event stream.
type AlertEvent struct {
	Transition   Transition        `json:"transition"`
	AlertID      int64             `json:"alert_id"`
	SerialNumber string            `json:"serial_number"`
	Type         models.AlertType  `json:"type"`
	State        models.AlertState `json:"state"`
	Message      string            `json:"message"`
	ReportedAt   time.Time         `json:"reported_at"`
	EmittedAt    time.Time         `json:"emitted_at"`
}

// Publisher receives alert transitions from the engine. Publishing is
// fire-and-forget relative to reading evaluation: a slow or failing stream
// must not block reconciliation.
type Publisher interface {
	Publish(ev AlertEvent)
	Close() error
}

// Noop discards all events; used when no brokers are configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Publish(AlertEvent) {}

func (*Noop) Close() error { return nil }
