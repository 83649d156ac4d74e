// Package sensors provides the acquisition adapters the pollers read from.
//
// Each adapter kind has a hardware implementation and a simulator selected at
// construction time, so the rest of the system never knows which one it is
// talking to.
package sensors

import (
	"errors"
	"time"
)

// ErrUnavailable reports that a source has no data to offer right now
// (hardware absent, port closed). It is distinct from a read failure: the
// pollers log it at a lower severity and skip the cycle.
var ErrUnavailable = errors.New("source unavailable")

// ClimateSample is one environmental sensor reading.
type ClimateSample struct {
	TemperatureC float64
	HumidityPct  float64
	PressureHPa  float64
	Timestamp    time.Time
}

// WeatherSample is one outdoor weather observation.
type WeatherSample struct {
	TemperatureC float64
	HumidityPct  float64
	Latitude     float64
	Longitude    float64
	Timestamp    time.Time
}

// ResourceSample is one host resource usage snapshot. It is served raw on
// the live system endpoint, hence the json tags.
type ResourceSample struct {
	CPUPct         float64   `json:"cpu_pct"`
	MemPct         float64   `json:"mem_pct"`
	DiskPct        float64   `json:"disk_pct"`
	MemUsedBytes   uint64    `json:"mem_used_bytes"`
	MemTotalBytes  uint64    `json:"mem_total_bytes"`
	DiskUsedBytes  uint64    `json:"disk_used_bytes"`
	DiskTotalBytes uint64    `json:"disk_total_bytes"`
	Timestamp      time.Time `json:"timestamp"`
}
