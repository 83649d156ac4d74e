// Package api exposes the dashboard REST surface.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gekkolab/vivarium/internal/db"
	"github.com/gekkolab/vivarium/internal/metrics"
	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/sensors"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server serves the REST/JSON dashboard surface. It reads through the same
// store contracts the pollers write through plus the live ring store view.
type Server struct {
	climate    *db.ClimateStore
	weather    *db.WeatherStore
	stats      *db.SystemStatsStore
	detections *db.DetectionStore
	ring       *metrics.RingStore
	camera     sensors.Camera
	captureDir string
	clock      timeutil.Clock
}

// NewServer creates a Server.
func NewServer(climate *db.ClimateStore, weather *db.WeatherStore, stats *db.SystemStatsStore, detections *db.DetectionStore, ring *metrics.RingStore, camera sensors.Camera, captureDir string, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		climate:    climate,
		weather:    weather,
		stats:      stats,
		detections: detections,
		ring:       ring,
		camera:     camera,
		captureDir: captureDir,
		clock:      clock,
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/climate/latest", s.climateLatest)
	mux.HandleFunc("/api/climate/history", s.climateHistory)
	mux.HandleFunc("/api/weather/latest", s.weatherLatest)
	mux.HandleFunc("/api/weather/history", s.weatherHistory)
	mux.HandleFunc("/api/system/live", s.systemLive)
	mux.HandleFunc("/api/system/latest", s.systemLatest)
	mux.HandleFunc("/api/system/history", s.systemHistory)
	mux.HandleFunc("/api/detections", s.listDetections)
	mux.HandleFunc("/api/detections/stats", s.detectionStats)
	mux.HandleFunc("/api/snapshot", s.snapshot)
	mux.HandleFunc("/charts/climate", s.climateChart)
	mux.HandleFunc("/healthz", s.healthz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// timeRange parses from/to query parameters (RFC3339), defaulting to the
// trailing 24 hours. The stores treat the upper bound as exclusive, so the
// default sits just past now to keep the freshest reading in the window.
func (s *Server) timeRange(r *http.Request) (from, to time.Time, err error) {
	now := s.clock.Now()
	from, to = now.Add(-24*time.Hour), now.Add(time.Nanosecond)

	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
