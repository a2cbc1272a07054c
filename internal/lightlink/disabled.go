package lightlink

import (
	"context"
	"net/http"
	"sync"

	"github.com/banshee-data/smart-traffic/internal/timing"
)

// DisabledLink is the Link used when no controller port is configured.
// Plans are dropped; subscriptions stay open until Unsubscribe or Close.
type DisabledLink struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledLink() *DisabledLink {
	return &DisabledLink{subscribers: make(map[string]chan string)}
}

func (d *DisabledLink) Enabled() bool                 { return false }
func (d *DisabledLink) PublishPlan(timing.Plan) error { return nil }
func (d *DisabledLink) SendCommand(string) error      { return nil }

func (d *DisabledLink) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledLink) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// Monitor blocks until ctx is done.
func (d *DisabledLink) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledLink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledLink) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, d)
}
