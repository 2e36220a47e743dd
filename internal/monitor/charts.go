package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roadtally/carcount/internal/httputil"
)

// ChartServer renders the crossing history as a go-echarts line chart.
type ChartServer struct {
	history *History
	title   string
}

// NewChartServer creates a chart server over the given history. The title
// appears on the rendered page, typically the counting line description.
func NewChartServer(history *History, title string) *ChartServer {
	return &ChartServer{history: history, title: title}
}

// Register mounts the chart routes on mux.
func (s *ChartServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/charts/counts", s.handleCountsChart)
	mux.HandleFunc("/charts/counts/data", s.handleCountsData)
}

// handleCountsChart renders an HTML page with in/out counts per minute.
func (s *ChartServer) handleCountsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	series := s.history.Series(time.Now())

	labels := make([]string, len(series.Minutes))
	inData := make([]opts.LineData, len(series.In))
	outData := make([]opts.LineData, len(series.Out))
	for i := range series.Minutes {
		labels[i] = series.Minutes[i].Format("15:04")
		inData[i] = opts.LineData{Value: series.In[i]}
		outData[i] = opts.LineData{Value: series.Out[i]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Crossings per minute",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Crossings per minute",
			Subtitle: fmt.Sprintf("line %s", s.title),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(labels).
		AddSeries("in", inData).
		AddSeries("out", outData)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleCountsData serves the raw series as JSON for external dashboards.
func (s *ChartServer) handleCountsData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.history.Series(time.Now()))
}
