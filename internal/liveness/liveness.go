// Package liveness classifies the two intersection peripherals as connected
// or not from the time of their last heartbeat.
package liveness

import (
	"fmt"
	"time"
)

// FreshnessWindow is the maximum heartbeat age still considered connected.
const FreshnessWindow = 15 * time.Second

// Peripheral names a remote device that sends heartbeats.
type Peripheral string

const (
	Camera Peripheral = "camera"
	Lights Peripheral = "lights"
)

// Peripherals lists every known peripheral in a stable order.
var Peripherals = []Peripheral{Camera, Lights}

// ParsePeripheral maps a name such as the last segment of a heartbeat URL
// onto a known peripheral.
func ParsePeripheral(name string) (Peripheral, error) {
	switch p := Peripheral(name); p {
	case Camera, Lights:
		return p, nil
	default:
		return "", fmt.Errorf("unknown peripheral %q", name)
	}
}

// Tracker records the last heartbeat per peripheral. It is not safe for
// concurrent use; the owner (state.Store) guards it together with the rest of
// the traffic state so a snapshot sees both consistently.
type Tracker struct {
	lastSeen map[Peripheral]time.Time
}

// NewTracker returns a tracker with no heartbeats recorded.
func NewTracker() *Tracker {
	return &Tracker{lastSeen: make(map[Peripheral]time.Time)}
}

// Record stores now as the latest heartbeat for p, replacing any earlier one.
func (t *Tracker) Record(p Peripheral, now time.Time) {
	t.lastSeen[p] = now
}

// LastSeen returns the latest heartbeat for p and whether one was recorded.
func (t *Tracker) LastSeen(p Peripheral) (time.Time, bool) {
	ts, ok := t.lastSeen[p]
	return ts, ok
}

// IsConnected reports whether p sent a heartbeat no more than window before now.
func (t *Tracker) IsConnected(p Peripheral, now time.Time, window time.Duration) bool {
	ts, ok := t.lastSeen[p]
	if !ok {
		return false
	}
	return now.Sub(ts) <= window
}
