// Package api exposes the counting state over HTTP: statistics, live
// tracks, the configured line, and a reset control. It renders no UI of
// its own beyond the chart routes mounted by the monitor package.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/roadtally/carcount/internal/config"
	"github.com/roadtally/carcount/internal/httputil"
	"github.com/roadtally/carcount/internal/linecount"
	"github.com/roadtally/carcount/internal/monitor"
	"github.com/roadtally/carcount/internal/monitoring"
	"github.com/roadtally/carcount/internal/units"
	"github.com/roadtally/carcount/internal/version"
)

// ANSI escape codes for request-log coloring
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server serves the counting API for one tracker instance.
type Server struct {
	tracker *linecount.Tracker
	history *monitor.History
	cfg     *config.Config
	runID   string
	started time.Time
}

// NewServer creates an API server. cfg may be nil when the process runs on
// pure flag configuration; /api/config then reports an empty document.
func NewServer(tracker *linecount.Tracker, history *monitor.History, cfg *config.Config, runID string) *Server {
	if cfg == nil {
		cfg = config.Empty()
	}
	return &Server{
		tracker: tracker,
		history: history,
		cfg:     cfg,
		runID:   runID,
		started: time.Now(),
	}
}

// ServeMux returns a mux with all API routes and the chart routes mounted.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/line", s.handleLine)
	mux.HandleFunc("/api/tracks", s.handleTracks)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/reset", s.handleReset)
	if s.history != nil {
		monitor.NewChartServer(s.history, s.tracker.Line().String()).Register(mux)
	}
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

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration for every
// request.
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

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

// statsResponse decorates the tracker statistics with run identity and the
// operator-facing traffic level.
type statsResponse struct {
	linecount.Stats
	RunID        string `json:"run_id"`
	TrafficLevel string `json:"traffic_level"`
	Version      string `json:"version"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	stats := s.tracker.Statistics()
	httputil.WriteJSONOK(w, statsResponse{
		Stats:        stats,
		RunID:        s.runID,
		TrafficLevel: units.LevelFor(units.Rate(stats.RatePerMinute)).String(),
		Version:      version.Version,
	})
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"line":     s.tracker.Line(),
		"cooldown": s.tracker.Cooldown().String(),
	})
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	tracks := s.tracker.ActiveTracks()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"count":  len(tracks),
		"tracks": tracks,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.tracker.Reset()
	monitoring.Logf("Counters reset via API")
	httputil.WriteJSONOK(w, s.tracker.Statistics())
}
