// Package lightlink drives the traffic light controller over a serial line.
//
// Each new plan is written as one line:
//
//	T,<ns_green>,<ew_green>,<yellow>,<all_red>,<cycle>
//
// The controller answers with "ACK..." lines and sends "HB" on its own
// schedule; each HB counts as a lights heartbeat.
package lightlink

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/monitoring"
	"github.com/banshee-data/smart-traffic/internal/timing"
)

var ErrWriteFailed = errors.New("failed to write to light controller")

// HeartbeatLine is the line the controller sends as a heartbeat.
const HeartbeatLine = "HB"

// Porter is the minimal serial port surface the link needs.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// HeartbeatRecorder receives lights heartbeats read from the line.
type HeartbeatRecorder interface {
	RecordHeartbeat(p liveness.Peripheral) time.Time
}

// Link is a connection to the light controller.
type Link interface {
	// Enabled reports whether a controller is attached.
	Enabled() bool
	// PublishPlan sends the plan to the controller.
	PublishPlan(timing.Plan) error
	// SendCommand writes one raw line.
	SendCommand(string) error
	// Subscribe returns a channel of lines read from the controller.
	Subscribe() (string, chan string)
	// Unsubscribe closes and removes a subscription.
	Unsubscribe(string)
	// Monitor reads lines until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes subscriptions and the port.
	Close() error
	// AttachAdminRoutes mounts debugging pages under /debug/ on mux.
	AttachAdminRoutes(*http.ServeMux)
}

// FormatPlan renders the controller's plan line, without a newline.
func FormatPlan(p timing.Plan) string {
	return fmt.Sprintf("T,%d,%d,%d,%d,%d", p.NSGreen, p.EWGreen, p.YellowTime, p.AllRedTime, p.TotalCycle)
}

// SerialLink is a Link over a serial port.
type SerialLink[T Porter] struct {
	port         T
	heartbeats   HeartbeatRecorder
	logf         func(format string, v ...interface{})
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// NewSerialLink wraps port. heartbeats may be nil.
func NewSerialLink[T Porter](port T, heartbeats HeartbeatRecorder) *SerialLink[T] {
	return &SerialLink[T]{
		port:        port,
		heartbeats:  heartbeats,
		logf:        monitoring.Component("lightlink"),
		subscribers: make(map[string]chan string),
	}
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions, heartbeats HeartbeatRecorder) (*SerialLink[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return NewSerialLink[serial.Port](port, heartbeats), nil
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialLink[T]) Enabled() bool { return true }

func (s *SerialLink[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

func (s *SerialLink[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendCommand writes command followed by a newline.
func (s *SerialLink[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// PublishPlan writes the plan line.
func (s *SerialLink[T]) PublishPlan(p timing.Plan) error {
	return s.SendCommand(FormatPlan(p))
}

// Monitor reads lines from the controller, records heartbeats and fans
// every line out to subscribers. Slow subscribers miss lines.
func (s *SerialLink[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.handleLine(strings.TrimSpace(line))
		}
	}
}

func (s *SerialLink[T]) handleLine(line string) {
	switch {
	case line == "":
		return
	case line == HeartbeatLine:
		if s.heartbeats != nil {
			s.heartbeats.RecordHeartbeat(liveness.Lights)
		}
	case strings.HasPrefix(line, "ACK"):
		s.logf("controller acknowledged: %s", line)
	default:
		s.logf("unrecognised controller line: %q", line)
	}

	s.subscriberMu.Lock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
	s.subscriberMu.Unlock()
}

func (s *SerialLink[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
