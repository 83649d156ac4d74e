package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gekkolab/vivarium/internal/httputil"
)

// climateChart renders a quick line chart (HTML) of enclosure temperature and
// humidity using go-echarts. This is a debugging-only endpoint (no auth) to
// eyeball trends without the dashboard UI.
// Query params:
//   - from, to (optional; RFC3339, default trailing 24h)
func (s *Server) climateChart(w http.ResponseWriter, r *http.Request) {
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
	if len(readings) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no climate readings in range")
		return
	}

	xs := make([]string, 0, len(readings))
	temps := make([]opts.LineData, 0, len(readings))
	hums := make([]opts.LineData, 0, len(readings))
	for _, rd := range readings {
		xs = append(xs, rd.RecordedAt.Local().Format("15:04"))
		temps = append(temps, opts.LineData{Value: rd.TemperatureC})
		hums = append(hums, opts.LineData{Value: rd.HumidityPct})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Enclosure Climate", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Enclosure Climate",
			Subtitle: fmt.Sprintf("%s to %s, %d readings", from.Format(time.RFC3339), to.Format(time.RFC3339), len(readings)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "temp (C) / humidity (%)"}),
	)

	line.SetXAxis(xs).
		AddSeries("temperature", temps, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})).
		AddSeries("humidity", hums, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
