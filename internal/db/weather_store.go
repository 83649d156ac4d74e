package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WeatherReading is one persisted outdoor weather observation.
type WeatherReading struct {
	ID           int64     `json:"id"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// WeatherStore provides persistence for outdoor weather observations.
type WeatherStore struct {
	db *DB
}

// NewWeatherStore creates a new WeatherStore.
func NewWeatherStore(db *DB) *WeatherStore {
	return &WeatherStore{db: db}
}

// Insert persists one weather observation.
func (s *WeatherStore) Insert(r WeatherReading) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO weather_readings (temperature_c, humidity_pct, latitude, longitude, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.TemperatureC, r.HumidityPct, r.Latitude, r.Longitude, formatTime(r.RecordedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting weather reading: %w", err)
	}
	return nil
}

// Latest returns the most recent observation, or nil if the table is empty.
func (s *WeatherStore) Latest() (*WeatherReading, error) {
	row := s.db.QueryRow(
		`SELECT id, temperature_c, humidity_pct, latitude, longitude, recorded_at
		 FROM weather_readings ORDER BY recorded_at DESC LIMIT 1`)
	r, err := scanWeather(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Range returns observations with from <= recorded_at < to, ascending.
func (s *WeatherStore) Range(from, to time.Time) ([]WeatherReading, error) {
	rows, err := s.db.Query(
		`SELECT id, temperature_c, humidity_pct, latitude, longitude, recorded_at
		 FROM weather_readings WHERE recorded_at >= ? AND recorded_at < ?
		 ORDER BY recorded_at ASC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying weather range: %w", err)
	}
	defer rows.Close()

	var readings []WeatherReading
	for rows.Next() {
		r, err := scanWeather(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

func scanWeather(row rowScanner) (*WeatherReading, error) {
	var r WeatherReading
	var stamp string
	if err := row.Scan(&r.ID, &r.TemperatureC, &r.HumidityPct, &r.Latitude, &r.Longitude, &stamp); err != nil {
		return nil, err
	}
	t, err := parseTime(stamp)
	if err != nil {
		return nil, err
	}
	r.RecordedAt = t
	return &r, nil
}
