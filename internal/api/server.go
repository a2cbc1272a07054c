// Package api serves the traffic controller's HTTP interface.
package api

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"

	"github.com/banshee-data/smart-traffic/internal/capture"
	"github.com/banshee-data/smart-traffic/internal/history"
	"github.com/banshee-data/smart-traffic/internal/lightlink"
	"github.com/banshee-data/smart-traffic/internal/monitoring"
	"github.com/banshee-data/smart-traffic/internal/state"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/timing"
	"github.com/banshee-data/smart-traffic/internal/vision"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultMaxUploadBytes caps image uploads when Options leaves it unset.
const DefaultMaxUploadBytes = 16 << 20

// Options wires the server to its collaborators. Store, Images and
// History are required.
type Options struct {
	Store   *state.Store
	Images  *capture.Store
	History *history.Store

	// Counter defaults to vision.HashCounter.
	Counter vision.Counter
	// Lights defaults to a disabled link.
	Lights lightlink.Link
	// Clock defaults to the wall clock.
	Clock timeutil.Clock
	// Static, when set, is served at "/".
	Static fs.FS

	MaxUploadBytes int64
}

type Server struct {
	store          *state.Store
	images         *capture.Store
	history        *history.Store
	counter        vision.Counter
	lights         lightlink.Link
	clock          timeutil.Clock
	static         fs.FS
	maxUploadBytes int64
	logf           func(format string, v ...interface{})

	// recordMu orders result recording so the controller always ends up
	// running the plan last stored.
	recordMu sync.Mutex
}

func NewServer(o Options) *Server {
	s := &Server{
		store:          o.Store,
		images:         o.Images,
		history:        o.History,
		counter:        o.Counter,
		lights:         o.Lights,
		clock:          o.Clock,
		static:         o.Static,
		maxUploadBytes: o.MaxUploadBytes,
		logf:           monitoring.Component("api"),
	}
	if s.counter == nil {
		s.counter = vision.HashCounter{}
	}
	if s.lights == nil {
		s.lights = lightlink.NewDisabledLink()
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}
	return s
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers every route on a new mux. Admin routes under
// /debug/ are added by the caller.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/heartbeat/", s.handleHeartbeat)
	mux.HandleFunc("/api/process_image", s.handleProcessImage)
	mux.HandleFunc("/api/process_counts", s.handleProcessCounts)
	mux.HandleFunc("/api/get_timings", s.handleGetTimings)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/summary", s.handleHistorySummary)
	mux.HandleFunc("/api/history/plot.png", s.handleHistoryPlot)
	mux.HandleFunc("/charts/history", s.handleHistoryChart)
	if s.static != nil {
		mux.Handle("/", http.FileServer(http.FS(s.static)))
	}
	return mux
}

// Handler wraps mux with CORS for browser clients on other origins and
// access logging.
func Handler(mux http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return LoggingMiddleware(c.Handler(mux))
}

// recordResult stores a new result and fans it out. Only the state store
// update is required to succeed; history and controller failures are
// logged. Concurrent calls are serialised.
func (s *Server) recordResult(ctx context.Context, source history.Source, counts timing.Counts, result timing.Prediction, imagePath string) {
	s.recordMu.Lock()
	defer s.recordMu.Unlock()

	s.store.RecordResult(counts, result, imagePath)

	if _, err := s.history.Record(context.WithoutCancel(ctx), source, result, imagePath); err != nil {
		s.logf("failed to record history: %v", err)
	}
	if err := s.lights.PublishPlan(result.Predictions); err != nil {
		s.logf("failed to publish plan to light controller: %v", err)
	}
}
