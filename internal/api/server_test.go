package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/banshee-data/smart-traffic/internal/capture"
	"github.com/banshee-data/smart-traffic/internal/fsutil"
	"github.com/banshee-data/smart-traffic/internal/history"
	"github.com/banshee-data/smart-traffic/internal/lightlink"
	"github.com/banshee-data/smart-traffic/internal/state"
	"github.com/banshee-data/smart-traffic/internal/testutil"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/timing"
)

// recordingLink captures published plans.
type recordingLink struct {
	*lightlink.DisabledLink

	mu    sync.Mutex
	plans []timing.Plan
	err   error
}

func (l *recordingLink) Enabled() bool { return true }

func (l *recordingLink) PublishPlan(p timing.Plan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plans = append(l.plans, p)
	return l.err
}

func (l *recordingLink) Plans() []timing.Plan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]timing.Plan(nil), l.plans...)
}

type testEnv struct {
	server  *Server
	handler http.Handler
	clock   *timeutil.MockClock
	fs      *fsutil.MemoryFileSystem
	store   *state.Store
	history *history.Store
	lights  *recordingLink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := timeutil.NewMockClock(testutil.Epoch)
	mem := fsutil.NewMemoryFileSystem()
	hist, err := history.NewStore(clock, 10)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { hist.Close() })

	env := &testEnv{
		clock:   clock,
		fs:      mem,
		store:   state.NewStore(clock),
		history: hist,
		lights:  &recordingLink{DisabledLink: lightlink.NewDisabledLink()},
	}
	env.server = NewServer(Options{
		Store:   env.store,
		Images:  capture.NewStore(mem, "captured_images", clock),
		History: hist,
		Lights:  env.lights,
		Clock:   clock,
		Static:  fstest.MapFS{"index.html": {Data: []byte("<html>dashboard</html>")}},
	})
	env.handler = Handler(env.server.ServeMux())
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(Options{})
	if s.counter == nil || s.lights == nil || s.clock == nil {
		t.Fatal("expected collaborators to be defaulted")
	}
	if s.lights.Enabled() {
		t.Error("default link should be disabled")
	}
	if s.maxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("maxUploadBytes = %d, want %d", s.maxUploadBytes, DefaultMaxUploadBytes)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/api/health", "GET"},
		{http.MethodPost, "/api/status", "GET"},
		{http.MethodGet, "/api/heartbeat/camera", "POST"},
		{http.MethodGet, "/api/heartbeat/lights", "POST"},
		{http.MethodGet, "/api/process_image", "POST"},
		{http.MethodGet, "/api/process_counts", "POST"},
		{http.MethodPost, "/api/get_timings", "GET"},
		{http.MethodPost, "/api/history", "GET"},
		{http.MethodDelete, "/api/history/summary", "GET"},
		{http.MethodPost, "/api/history/plot.png", "GET"},
		{http.MethodPost, "/charts/history", "GET"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := env.do(httptest.NewRequest(tc.method, tc.path, nil))
			testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
			if got := rec.Header().Get("Allow"); got != tc.allow {
				t.Errorf("Allow = %q, want %q", got, tc.allow)
			}
		})
	}
}

func TestHandler_CORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rec := env.do(req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	preflight := httptest.NewRequest(http.MethodOptions, "/api/process_counts", nil)
	preflight.Header.Set("Origin", "http://dashboard.local")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec = env.do(preflight)
	if rec.Code >= 300 {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestStaticFiles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "dashboard") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
}

func TestStatusCodeColor(t *testing.T) {
	cases := map[int]string{
		200: colorBoldGreen,
		302: colorYellow,
		404: colorBoldRed,
		500: colorBoldRed,
	}
	for code, prefix := range cases {
		if got := statusCodeColor(code); !strings.HasPrefix(got, prefix) {
			t.Errorf("statusCodeColor(%d) = %q", code, got)
		}
	}
	if got := statusCodeColor(101); got != "101" {
		t.Errorf("statusCodeColor(101) = %q", got)
	}
}

func TestRecordResult_LightsFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	env.lights.err = bytes.ErrTooLarge

	rec := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/process_counts", `{"car_counts":[1,1,1,1]}`))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if n := len(env.lights.Plans()); n != 1 {
		t.Errorf("published %d plans, want 1", n)
	}
}

func TestRecordResult_ControllerMatchesLatestState(t *testing.T) {
	env := newTestEnv(t)
	bodies := []string{
		`{"car_counts":[12,4,11,3]}`,
		`{"car_counts":[3,12,4,11]}`,
		`{"car_counts":[5,5,5,5]}`,
	}

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, body := range bodies {
			wg.Add(1)
			go func(body string) {
				defer wg.Done()
				rec := env.do(testutil.NewJSONRequest(http.MethodPost, "/api/process_counts", body))
				testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
			}(body)
		}
	}
	wg.Wait()

	plans := env.lights.Plans()
	if len(plans) != rounds*len(bodies) {
		t.Fatalf("published %d plans, want %d", len(plans), rounds*len(bodies))
	}
	latest := env.store.LatestTimings().Predictions
	if got := plans[len(plans)-1]; got != latest {
		t.Errorf("controller runs %+v, state reports %+v", got, latest)
	}

	entries, err := env.history.Recent(context.Background(), 1)
	testutil.AssertNoError(t, err)
	if len(entries) != 1 || entries[0].Plan != latest {
		t.Errorf("newest history entry = %+v, state reports %+v", entries, latest)
	}
}
