package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"airwatch/internal/models"
)

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	serial_number       TEXT PRIMARY KEY,
	shared_secret       TEXT NOT NULL,
	firmware_version    TEXT NOT NULL DEFAULT '',
	first_registered_at TIMESTAMPTZ,
	last_registered_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS device_registrations (
	id            BIGSERIAL PRIMARY KEY,
	serial_number TEXT NOT NULL REFERENCES devices(serial_number),
	token_id      TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS device_readings (
	id              BIGSERIAL PRIMARY KEY,
	serial_number   TEXT NOT NULL REFERENCES devices(serial_number),
	temperature     NUMERIC(5,2) NOT NULL,
	humidity        NUMERIC(5,2) NOT NULL,
	carbon_monoxide NUMERIC(5,2) NOT NULL,
	health          TEXT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS device_readings_serial_idx
	ON device_readings (serial_number);

CREATE TABLE IF NOT EXISTS alerts (
	id               BIGSERIAL PRIMARY KEY,
	serial_number    TEXT NOT NULL REFERENCES devices(serial_number),
	alert_type       TEXT NOT NULL,
	alert_state      TEXT NOT NULL,
	message          TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	reported_at      TIMESTAMPTZ NOT NULL,
	last_reported_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS alerts_serial_type_idx
	ON alerts (serial_number, alert_type, reported_at DESC);

-- Backstop for the one-open-alert-per-type invariant: the engine enforces it
-- by sequencing, the index catches a racing second batch for the same device.
CREATE UNIQUE INDEX IF NOT EXISTS alerts_one_open_per_type_idx
	ON alerts (serial_number, alert_type)
	WHERE alert_state = 'NEW';
`

// NewPostgres connects a pgx pool and bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (s *Postgres) FindLatestAlert(ctx context.Context, serialNumber string, alertType models.AlertType) (*models.Alert, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, serial_number, alert_type, alert_state, message,
		       created_at, reported_at, last_reported_at
		FROM alerts
		WHERE serial_number = $1 AND alert_type = $2
		ORDER BY reported_at DESC, id DESC
		LIMIT 1`,
		serialNumber, alertType)

	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest alert: %w", err)
	}
	return a, nil
}

func (s *Postgres) FindOpenAlerts(ctx context.Context, serialNumber string, excludeTypes []models.AlertType) ([]models.Alert, error) {
	excluded := make([]string, len(excludeTypes))
	for i, t := range excludeTypes {
		excluded[i] = string(t)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, serial_number, alert_type, alert_state, message,
		       created_at, reported_at, last_reported_at
		FROM alerts
		WHERE serial_number = $1
		  AND alert_state = $2
		  AND alert_type <> ALL($3)`,
		serialNumber, models.AlertStateNew, excluded)
	if err != nil {
		return nil, fmt.Errorf("finding open alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (s *Postgres) InsertAlert(ctx context.Context, alert *models.Alert) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts (serial_number, alert_type, alert_state, message,
		                    created_at, reported_at, last_reported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		alert.SerialNumber, alert.Type, alert.State, alert.Message,
		alert.CreatedAt, alert.ReportedAt, alert.LastReportedAt,
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE alerts
		SET alert_state = $2, message = $3, reported_at = $4, last_reported_at = $5
		WHERE id = $1`,
		alert.ID, alert.State, alert.Message, alert.ReportedAt, alert.LastReportedAt)
	if err != nil {
		return fmt.Errorf("updating alert %d: %w", alert.ID, err)
	}
	return nil
}

func (s *Postgres) CountAlerts(ctx context.Context, serialNumber string, filter models.AlertFilter) (int, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE serial_number = $1`
	args := []any{serialNumber}
	if state, ok := filterState(filter); ok {
		query += ` AND alert_state = $2`
		args = append(args, state)
	}

	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting alerts: %w", err)
	}
	return count, nil
}

func (s *Postgres) QueryAlertsPage(ctx context.Context, serialNumber string, filter models.AlertFilter, skip, take int) ([]models.Alert, error) {
	query := `
		SELECT id, serial_number, alert_type, alert_state, message,
		       created_at, reported_at, last_reported_at
		FROM alerts
		WHERE serial_number = $1`
	args := []any{serialNumber}
	if state, ok := filterState(filter); ok {
		query += ` AND alert_state = $2`
		args = append(args, state)
	}
	query += fmt.Sprintf(` ORDER BY reported_at DESC, id DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, skip, take)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts page: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (s *Postgres) SaveReading(ctx context.Context, reading *models.DeviceReading) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO device_readings (serial_number, temperature, humidity,
		                             carbon_monoxide, health, recorded_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		reading.SerialNumber, reading.Temperature, reading.Humidity,
		reading.CarbonMonoxide, reading.Health, reading.RecordedAt, reading.ReceivedAt,
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("saving reading: %w", err)
	}
	return nil
}

func (s *Postgres) MinMaxReading(ctx context.Context, serialNumber string, m models.Measurement) (float64, float64, bool, error) {
	column, ok := measurementColumn(m)
	if !ok {
		return 0, 0, false, nil
	}

	var minVal, maxVal *float64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT MIN(%s), MAX(%s) FROM device_readings WHERE serial_number = $1`, column, column),
		serialNumber,
	).Scan(&minVal, &maxVal)
	if err != nil {
		return 0, 0, false, fmt.Errorf("aggregating readings: %w", err)
	}
	if minVal == nil || maxVal == nil {
		return 0, 0, false, nil
	}
	return *minVal, *maxVal, true, nil
}

func (s *Postgres) DeviceExists(ctx context.Context, serialNumber string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE serial_number = $1)`,
		serialNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking device existence: %w", err)
	}
	return exists, nil
}

func (s *Postgres) FindDevice(ctx context.Context, serialNumber, sharedSecret string) (*models.Device, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT serial_number, shared_secret, firmware_version,
		       first_registered_at, last_registered_at
		FROM devices
		WHERE serial_number = $1 AND shared_secret = $2`,
		serialNumber, sharedSecret)

	var d models.Device
	err := row.Scan(&d.SerialNumber, &d.SharedSecret, &d.FirmwareVersion,
		&d.FirstRegisteredAt, &d.LastRegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding device: %w", err)
	}
	return &d, nil
}

func (s *Postgres) InsertDevice(ctx context.Context, device *models.Device) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (serial_number, shared_secret, firmware_version,
		                     first_registered_at, last_registered_at)
		VALUES ($1, $2, $3, $4, $5)`,
		device.SerialNumber, device.SharedSecret, device.FirmwareVersion,
		device.FirstRegisteredAt, device.LastRegisteredAt)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

func (s *Postgres) AddRegistration(ctx context.Context, reg *models.DeviceRegistration, firmwareVersion string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning registration tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE device_registrations SET active = FALSE WHERE serial_number = $1 AND active`,
		reg.SerialNumber); err != nil {
		return fmt.Errorf("deactivating registrations: %w", err)
	}

	reg.Active = true
	if err := tx.QueryRow(ctx, `
		INSERT INTO device_registrations (serial_number, token_id, registered_at, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id`,
		reg.SerialNumber, reg.TokenID, reg.RegisteredAt,
	).Scan(&reg.ID); err != nil {
		return fmt.Errorf("inserting registration: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE devices
		SET firmware_version = $2,
		    first_registered_at = COALESCE(first_registered_at, $3),
		    last_registered_at = $3
		WHERE serial_number = $1`,
		reg.SerialNumber, firmwareVersion, reg.RegisteredAt); err != nil {
		return fmt.Errorf("updating device registration dates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing registration tx: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	err := row.Scan(&a.ID, &a.SerialNumber, &a.Type, &a.State, &a.Message,
		&a.CreatedAt, &a.ReportedAt, &a.LastReportedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAlerts(rows pgx.Rows) ([]models.Alert, error) {
	var out []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}
	return out, nil
}

func filterState(filter models.AlertFilter) (models.AlertState, bool) {
	switch filter {
	case models.FilterNew:
		return models.AlertStateNew, true
	case models.FilterResolved:
		return models.AlertStateResolved, true
	default:
		return "", false
	}
}

func measurementColumn(m models.Measurement) (string, bool) {
	switch m {
	case models.MeasurementTemperature:
		return "temperature", true
	case models.MeasurementHumidity:
		return "humidity", true
	case models.MeasurementCarbonMonoxide:
		return "carbon_monoxide", true
	default:
		return "", false
	}
}
