package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/edgesentinel/alertgate/internal/httputil"
)

// eventsChart renders a quick bar chart (HTML) of per-class alert counts
// using go-echarts. This is a debugging-only endpoint to eyeball activity
// without a full dashboard UI.
// Query params:
//   - days (optional; default 7)
func (s *Server) eventsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v >= 1 && v <= 365 {
			days = v
		}
	}

	rollup, err := s.store.Rollup(days)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve rollup: %v", err))
		return
	}
	if len(rollup) == 0 {
		httputil.NotFound(w, "no events in window")
		return
	}

	classes := make([]string, 0, len(rollup))
	counts := make([]opts.BarData, 0, len(rollup))
	maxConf := make([]opts.BarData, 0, len(rollup))
	for _, row := range rollup {
		classes = append(classes, row.ClassName)
		counts = append(counts, opts.BarData{Value: row.Count})
		maxConf = append(maxConf, opts.BarData{Value: row.MaxConfidence})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Alert Events", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Alert Events by Class", Subtitle: fmt.Sprintf("last %d day(s)", days)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(classes)
	bar.AddSeries("events", counts)
	bar.AddSeries("max confidence", maxConf)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
