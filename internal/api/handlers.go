package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gekkolab/vivarium/internal/httputil"
	"github.com/gekkolab/vivarium/internal/motion"
	"github.com/gekkolab/vivarium/internal/units"
)

func (s *Server) climateLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	reading, err := s.climate.Latest()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if reading == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no climate readings yet")
		return
	}
	unit := requestUnit(r)
	reading.TemperatureC = units.ConvertTemperature(reading.TemperatureC, unit)
	httputil.WriteJSONOK(w, reading)
}

func (s *Server) climateHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	from, to, err := s.timeRange(r)
	if err != nil {
		httputil.BadRequest(w, "from/to must be RFC3339 timestamps")
		return
	}
	readings, err := s.climate.Range(from, to)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	unit := requestUnit(r)
	for i := range readings {
		readings[i].TemperatureC = units.ConvertTemperature(readings[i].TemperatureC, unit)
	}
	httputil.WriteJSONOK(w, readings)
}

func (s *Server) weatherLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	reading, err := s.weather.Latest()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if reading == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no weather readings yet")
		return
	}
	httputil.WriteJSONOK(w, reading)
}

func (s *Server) weatherHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	from, to, err := s.timeRange(r)
	if err != nil {
		httputil.BadRequest(w, "from/to must be RFC3339 timestamps")
		return
	}
	readings, err := s.weather.Range(from, to)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, readings)
}

// systemLive serves the un-aggregated snapshots from the ring store's
// display view for the dashboard's live graph.
func (s *Server) systemLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	window := 15 * time.Minute
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			httputil.BadRequest(w, "window must be a positive duration")
			return
		}
		window = d
	}
	httputil.WriteJSONOK(w, s.ring.Window(window))
}

func (s *Server) systemLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	latest := s.ring.Latest()
	if latest == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no resource snapshots yet")
		return
	}
	httputil.WriteJSONOK(w, latest)
}

func (s *Server) systemHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	from, to, err := s.timeRange(r)
	if err != nil {
		httputil.BadRequest(w, "from/to must be RFC3339 timestamps")
		return
	}
	records, err := s.stats.Range(from, to)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, records)
}

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	detections, err := s.detections.Recent(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, detections)
}

func (s *Server) detectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	since := s.clock.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}
	n, err := s.detections.CountDetected(since)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"since": since, "detected": n})
}

// snapshot grabs a frame on demand, saves it alongside the motion captures
// (so the classification pipeline picks it up too) and returns the JPEG.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.camera.Available() {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "camera unavailable")
		return
	}
	frame, err := s.camera.Capture(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "capture failed: "+err.Error())
		return
	}
	if _, err := motion.WriteCapture(s.captureDir, motion.SnapshotPrefix, s.clock.Now(), frame); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(frame)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

func requestUnit(r *http.Request) string {
	unit := r.URL.Query().Get("units")
	if !units.IsValid(unit) {
		return units.Celsius
	}
	return unit
}
