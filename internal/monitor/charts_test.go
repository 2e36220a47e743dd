package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roadtally/carcount/internal/linecount"
)

func newTestChartServer() (*ChartServer, *History) {
	h := NewHistory(10 * time.Minute)
	return NewChartServer(h, "(0,100)->(200,100)"), h
}

func TestCountsChartRenders(t *testing.T) {
	s, h := newTestChartServer()
	h.Add(linecount.Crossing{Direction: linecount.DirectionIn, Timestamp: time.Now()})

	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/charts/counts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") {
		t.Error("chart page does not reference echarts")
	}
	if !strings.Contains(body, "Crossings per minute") {
		t.Error("chart page missing title")
	}
}

func TestCountsDataJSON(t *testing.T) {
	s, h := newTestChartServer()
	h.Add(linecount.Crossing{Direction: linecount.DirectionOut, Timestamp: time.Now()})

	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/charts/counts/data", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var series Series
	if err := json.Unmarshal(rec.Body.Bytes(), &series); err != nil {
		t.Fatalf("failed to decode series: %v", err)
	}
	if len(series.Minutes) != 10 {
		t.Errorf("series length = %d, want 10", len(series.Minutes))
	}
	var out int64
	for _, v := range series.Out {
		out += v
	}
	if out != 1 {
		t.Errorf("out total = %d, want 1", out)
	}
}

func TestChartRoutesMethodGuard(t *testing.T) {
	s, _ := newTestChartServer()
	mux := http.NewServeMux()
	s.Register(mux)

	for _, path := range []string{"/charts/counts", "/charts/counts/data"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: status = %d, want 405", path, rec.Code)
		}
	}
}
