package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SystemStats is one aggregated batch of host resource snapshots. Percentage
// and used-bytes fields are batch means; total-bytes fields come from the
// last snapshot in the batch, since capacity is near-constant and the newest
// reading is the most representative.
type SystemStats struct {
	ID             int64     `json:"id"`
	CPUPct         float64   `json:"cpu_pct"`
	MemPct         float64   `json:"mem_pct"`
	DiskPct        float64   `json:"disk_pct"`
	MemUsedBytes   uint64    `json:"mem_used_bytes"`
	MemTotalBytes  uint64    `json:"mem_total_bytes"`
	DiskUsedBytes  uint64    `json:"disk_used_bytes"`
	DiskTotalBytes uint64    `json:"disk_total_bytes"`
	SampleCount    int       `json:"sample_count"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// SystemStatsStore provides persistence for aggregated resource stats.
type SystemStatsStore struct {
	db *DB
}

// NewSystemStatsStore creates a new SystemStatsStore.
func NewSystemStatsStore(db *DB) *SystemStatsStore {
	return &SystemStatsStore{db: db}
}

// Insert persists one aggregated record.
func (s *SystemStatsStore) Insert(r SystemStats) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO system_stats (
				cpu_pct, mem_pct, disk_pct, mem_used_bytes, mem_total_bytes,
				disk_used_bytes, disk_total_bytes, sample_count, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.CPUPct, r.MemPct, r.DiskPct, r.MemUsedBytes, r.MemTotalBytes,
			r.DiskUsedBytes, r.DiskTotalBytes, r.SampleCount, formatTime(r.RecordedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting system stats: %w", err)
	}
	return nil
}

// Latest returns the most recent aggregated record, or nil if none exist.
func (s *SystemStatsStore) Latest() (*SystemStats, error) {
	row := s.db.QueryRow(
		`SELECT id, cpu_pct, mem_pct, disk_pct, mem_used_bytes, mem_total_bytes,
			disk_used_bytes, disk_total_bytes, sample_count, recorded_at
		 FROM system_stats ORDER BY recorded_at DESC LIMIT 1`)
	r, err := scanSystemStats(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// Range returns records with from <= recorded_at < to, ascending.
func (s *SystemStatsStore) Range(from, to time.Time) ([]SystemStats, error) {
	rows, err := s.db.Query(
		`SELECT id, cpu_pct, mem_pct, disk_pct, mem_used_bytes, mem_total_bytes,
			disk_used_bytes, disk_total_bytes, sample_count, recorded_at
		 FROM system_stats WHERE recorded_at >= ? AND recorded_at < ?
		 ORDER BY recorded_at ASC`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying system stats range: %w", err)
	}
	defer rows.Close()

	var records []SystemStats
	for rows.Next() {
		r, err := scanSystemStats(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes aggregated records recorded before cutoff and
// returns the number deleted.
func (s *SystemStatsStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var deleted int64
	err := retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM system_stats WHERE recorded_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting old system stats: %w", err)
	}
	return deleted, nil
}

func scanSystemStats(row rowScanner) (*SystemStats, error) {
	var r SystemStats
	var stamp string
	if err := row.Scan(
		&r.ID, &r.CPUPct, &r.MemPct, &r.DiskPct, &r.MemUsedBytes, &r.MemTotalBytes,
		&r.DiskUsedBytes, &r.DiskTotalBytes, &r.SampleCount, &stamp,
	); err != nil {
		return nil, err
	}
	t, err := parseTime(stamp)
	if err != nil {
		return nil, err
	}
	r.RecordedAt = t
	return &r, nil
}
