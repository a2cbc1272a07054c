package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/smart-traffic/internal/history"
	"github.com/banshee-data/smart-traffic/internal/httputil"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// HistoryResponse is returned by /api/history, newest entry first.
type HistoryResponse struct {
	Limit   int             `json:"limit"`
	Entries []history.Entry `json:"entries"`
}

// historyLimit parses ?limit=; absent means the full retention.
func (s *Server) historyLimit(r *http.Request) (int, bool) {
	limit := s.history.Limit()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, false
		}
		limit = min(n, limit)
	}
	return limit, true
}

// chronological returns the entries for a GET request oldest first, or
// writes an error and returns false.
func (s *Server) chronological(w http.ResponseWriter, r *http.Request) ([]history.Entry, bool) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return nil, false
	}
	limit, ok := s.historyLimit(r)
	if !ok {
		httputil.BadRequest(w, "Invalid 'limit' parameter")
		return nil, false
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logf("failed to load history: %v", err)
		httputil.InternalServerError(w, "failed to load history")
		return nil, false
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, true
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit, ok := s.historyLimit(r)
	if !ok {
		httputil.BadRequest(w, "Invalid 'limit' parameter")
		return
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logf("failed to load history: %v", err)
		httputil.InternalServerError(w, "failed to load history")
		return
	}
	httputil.WriteJSONOK(w, HistoryResponse{Limit: limit, Entries: entries})
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	summary, err := s.history.Summary(r.Context())
	if err != nil {
		s.logf("failed to summarise history: %v", err)
		httputil.InternalServerError(w, "failed to summarise history")
		return
	}
	httputil.WriteJSONOK(w, summary)
}

// handleHistoryPlot renders green times per recorded result as a PNG.
func (s *Server) handleHistoryPlot(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.chronological(w, r)
	if !ok {
		return
	}

	p := plot.New()
	p.Title.Text = "Green time per result"
	p.X.Label.Text = "Result #"
	p.Y.Label.Text = "Seconds"

	ns := make(plotter.XYs, len(entries))
	ew := make(plotter.XYs, len(entries))
	for i, e := range entries {
		ns[i] = plotter.XY{X: float64(i + 1), Y: float64(e.Plan.NSGreen)}
		ew[i] = plotter.XY{X: float64(i + 1), Y: float64(e.Plan.EWGreen)}
	}
	if len(entries) > 0 {
		for i, series := range []struct {
			name string
			xys  plotter.XYs
		}{{"N/S green", ns}, {"E/W green", ew}} {
			line, err := plotter.NewLine(series.xys)
			if err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("plot error: %v", err))
				return
			}
			line.Width = vg.Points(1)
			line.Color = plotutil.Color(i)
			p.Add(line)
			p.Legend.Add(series.name, line)
		}
	}

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

// handleHistoryChart renders an interactive chart of green times and
// cycle lengths over the retained history.
func (s *Server) handleHistoryChart(w http.ResponseWriter, r *http.Request) {
	entries, ok := s.chronological(w, r)
	if !ok {
		return
	}

	x := make([]string, len(entries))
	ns := make([]opts.LineData, len(entries))
	ew := make([]opts.LineData, len(entries))
	cycle := make([]opts.LineData, len(entries))
	for i, e := range entries {
		x[i] = timeutil.FormatUTC(e.RecordedAt)
		ns[i] = opts.LineData{Value: e.Plan.NSGreen}
		ew[i] = opts.LineData{Value: e.Plan.EWGreen}
		cycle[i] = opts.LineData{Value: e.Plan.TotalCycle}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Signal timing history", Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Signal timing history", Subtitle: fmt.Sprintf("results=%d", len(entries))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "seconds"}),
	)
	line.SetXAxis(x).
		AddSeries("N/S green", ns, charts.WithLineChartOpts(opts.LineChart{Step: "end"})).
		AddSeries("E/W green", ew, charts.WithLineChartOpts(opts.LineChart{Step: "end"})).
		AddSeries("cycle", cycle, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	page := components.NewPage()
	page.SetPageTitle("Signal timing history")
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
