package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Detection is one classifier verdict for a capture file. BBoxJSON carries
// the optional bounding box as raw JSON; empty means the classifier did not
// report one.
type Detection struct {
	ID         string    `json:"id"`
	FilePath   string    `json:"file_path"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Detected   bool      `json:"detected"`
	BBoxJSON   string    `json:"bbox,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DetectionStore provides persistence for classifier results.
type DetectionStore struct {
	db *DB
}

// NewDetectionStore creates a new DetectionStore.
func NewDetectionStore(db *DB) *DetectionStore {
	return &DetectionStore{db: db}
}

// Insert persists one detection. Detections are write-once; there is no
// update path.
func (s *DetectionStore) Insert(d Detection) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO detections (id, file_path, label, confidence, detected, bbox_json, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.FilePath, d.Label, d.Confidence, d.Detected,
			nullStr(d.BBoxJSON), formatTime(d.RecordedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting detection for %s: %w", d.FilePath, err)
	}
	return nil
}

// Recent returns the newest detections, most recent first, up to limit.
func (s *DetectionStore) Recent(limit int) ([]Detection, error) {
	rows, err := s.db.Query(
		`SELECT id, file_path, label, confidence, detected, bbox_json, recorded_at
		 FROM detections ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent detections: %w", err)
	}
	defer rows.Close()

	var detections []Detection
	for rows.Next() {
		var d Detection
		var stamp string
		var bbox sql.NullString
		if err := rows.Scan(&d.ID, &d.FilePath, &d.Label, &d.Confidence, &d.Detected, &bbox, &stamp); err != nil {
			return nil, err
		}
		t, err := parseTime(stamp)
		if err != nil {
			return nil, err
		}
		d.RecordedAt = t
		d.BBoxJSON = bbox.String
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

// CountDetected returns how many detections had the target animal present
// since the given time.
func (s *DetectionStore) CountDetected(since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM detections WHERE detected = 1 AND recorded_at >= ?`,
		formatTime(since),
	).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("counting detections: %w", err)
	}
	return n, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
