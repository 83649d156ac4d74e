package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClimateReading is one persisted environmental sensor sample.
type ClimateReading struct {
	ID           int64     `json:"id"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	PressureHPa  float64   `json:"pressure_hpa"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ClimateStore provides persistence for enclosure climate readings.
type ClimateStore struct {
	db *DB
}

// NewClimateStore creates a new ClimateStore.
func NewClimateStore(db *DB) *ClimateStore {
	return &ClimateStore{db: db}
}

// Insert persists one climate reading.
func (s *ClimateStore) Insert(r ClimateReading) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO climate_readings (temperature_c, humidity_pct, pressure_hpa, recorded_at)
			 VALUES (?, ?, ?, ?)`,
			r.TemperatureC, r.HumidityPct, r.PressureHPa, formatTime(r.RecordedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting climate reading: %w", err)
	}
	return nil
}

// Latest returns the most recent reading, or nil if the table is empty.
func (s *ClimateStore) Latest() (*ClimateReading, error) {
	row := s.db.QueryRow(
		`SELECT id, temperature_c, humidity_pct, pressure_hpa, recorded_at
		 FROM climate_readings ORDER BY recorded_at DESC LIMIT 1`)
	r, err := scanClimate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Range returns readings with from <= recorded_at < to, ascending by time.
func (s *ClimateStore) Range(from, to time.Time) ([]ClimateReading, error) {
	rows, err := s.db.Query(
		`SELECT id, temperature_c, humidity_pct, pressure_hpa, recorded_at
		 FROM climate_readings WHERE recorded_at >= ? AND recorded_at < ?
		 ORDER BY recorded_at ASC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying climate range: %w", err)
	}
	defer rows.Close()

	var readings []ClimateReading
	for rows.Next() {
		r, err := scanClimate(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClimate(row rowScanner) (*ClimateReading, error) {
	var r ClimateReading
	var stamp string
	if err := row.Scan(&r.ID, &r.TemperatureC, &r.HumidityPct, &r.PressureHPa, &stamp); err != nil {
		return nil, err
	}
	t, err := parseTime(stamp)
	if err != nil {
		return nil, err
	}
	r.RecordedAt = t
	return &r, nil
}
