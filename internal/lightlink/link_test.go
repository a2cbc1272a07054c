package lightlink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/timing"
)

// testPort reads what the test writes to controller and records writes.
type testPort struct {
	reader     *io.PipeReader
	controller *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func newTestPort() *testPort {
	r, w := io.Pipe()
	return &testPort{reader: r, controller: w}
}

func (p *testPort) Read(buf []byte) (int, error) { return p.reader.Read(buf) }

func (p *testPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(data)
}

func (p *testPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.reader.Close()
}

func (p *testPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

type heartbeatSink struct {
	got chan liveness.Peripheral
}

func (h *heartbeatSink) RecordHeartbeat(p liveness.Peripheral) time.Time {
	h.got <- p
	return time.Time{}
}

func TestFormatPlan(t *testing.T) {
	plan, err := timing.ComputeTimings([]int{12, 4, 11, 3})
	require.NoError(t, err)
	assert.Equal(t, "T,55,20,3,2,85", FormatPlan(plan))
}

func TestSerialLink_PublishPlan(t *testing.T) {
	port := newTestPort()
	link := NewSerialLink(port, nil)

	plan := timing.PlanFor(timing.DefaultCounts)
	require.NoError(t, link.PublishPlan(plan))
	require.NoError(t, link.SendCommand("PING\n"))
	assert.Equal(t, "T,35,35,3,2,80\nPING\n", port.Written())
}

func TestSerialLink_WriteError(t *testing.T) {
	port := newTestPort()
	port.writeErr = errors.New("device gone")
	link := NewSerialLink(port, nil)

	err := link.PublishPlan(timing.PlanFor(timing.DefaultCounts))
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestSerialLink_MonitorRecordsHeartbeats(t *testing.T) {
	port := newTestPort()
	sink := &heartbeatSink{got: make(chan liveness.Peripheral, 4)}
	link := NewSerialLink(port, sink)

	id, lines := link.Subscribe()
	defer link.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Monitor(ctx) }()

	go io.WriteString(port.controller, "ACK,T\r\nHB\n")

	select {
	case p := <-sink.got:
		assert.Equal(t, liveness.Lights, p)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat not recorded")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop")
	}

	// Subscribers are fed without blocking the reader, so lines may be
	// dropped; any that arrived must be trimmed.
	for {
		select {
		case line := <-lines:
			assert.NotContains(t, line, "\r")
		default:
			return
		}
	}
}

func TestSerialLink_SubscriberReceivesLines(t *testing.T) {
	port := newTestPort()
	link := NewSerialLink(port, nil)
	defer link.Close()

	id, lines := link.Subscribe()
	defer link.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go link.Monitor(ctx)

	// Lines are dropped while no reader is parked, so keep sending.
	go func() {
		for {
			if _, err := io.WriteString(port.controller, "ACK,T\n"); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	select {
	case line := <-lines:
		assert.Equal(t, "ACK,T", line)
	case <-time.After(2 * time.Second):
		t.Fatal("no line delivered")
	}
}

func TestSerialLink_CloseClosesSubscribers(t *testing.T) {
	port := newTestPort()
	link := NewSerialLink(port, nil)
	_, ch := link.Subscribe()

	require.NoError(t, link.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, port.closed)
}

func TestDisabledLink(t *testing.T) {
	link := NewDisabledLink()
	assert.False(t, link.Enabled())
	assert.NoError(t, link.PublishPlan(timing.Plan{}))

	_, ch := link.Subscribe()
	require.NoError(t, link.Close())
	_, ok := <-ch
	assert.False(t, ok)

	_, late := link.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, link.Monitor(ctx), context.Canceled)
}

func TestAttachAdminRoutes(t *testing.T) {
	for name, link := range map[string]Link{
		"serial":   NewSerialLink(newTestPort(), nil),
		"disabled": NewDisabledLink(),
	} {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			link.AttachAdminRoutes(mux)

			for _, endpoint := range []string{"/debug/lights-console", "/debug/lights-send"} {
				req := httptest.NewRequest(http.MethodGet, endpoint, nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				assert.NotEqual(t, http.StatusNotFound, w.Code, endpoint)
			}
		})
	}
}

func TestPortOptions(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.Normalize()
	assert.Error(t, err)

	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.EqualValues(t, 2, mode.StopBits) // serial.TwoStopBits
	assert.EqualValues(t, 2, mode.Parity)   // serial.EvenParity
}
