// Package state holds the process-wide traffic state: the latest counts and
// timing result, the image they came from and the peripheral heartbeats.
package state

import (
	"sync"
	"time"

	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/timing"
)

// StatusView is a point-in-time copy of the store. It shares no memory with
// the store, so callers may keep or modify it freely.
type StatusView struct {
	LastCounts  timing.Counts
	LastTimings timing.Prediction
	// LastImageRef is empty when the latest result came from direct counts.
	LastImageRef string
	// LastUpdate is the time of the latest result, or the snapshot time when
	// Defaulted is set.
	LastUpdate time.Time
	// Defaulted is set when nothing has been recorded yet and the counts and
	// timings were derived from timing.DefaultCounts.
	Defaulted bool

	CameraHeartbeat time.Time // zero if never seen
	LightsHeartbeat time.Time // zero if never seen
	CameraConnected bool
	LightsConnected bool
}

// Store is the single owner of the mutable traffic state. All methods are
// safe for concurrent use; callers never take the lock directly.
type Store struct {
	clock timeutil.Clock

	mu           sync.RWMutex
	hasResult    bool
	lastCounts   timing.Counts
	lastResult   timing.Prediction
	lastImageRef string
	lastUpdate   time.Time
	heartbeats   *liveness.Tracker
}

// NewStore returns an empty store reading time from clock. A nil clock uses
// the wall clock.
func NewStore(clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{
		clock:      clock,
		heartbeats: liveness.NewTracker(),
	}
}

// RecordResult replaces the latest counts, result and image reference in one
// step and stamps the update time. imageRef may be empty.
func (s *Store) RecordResult(counts timing.Counts, result timing.Prediction, imageRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hasResult = true
	s.lastCounts = counts
	s.lastResult = copyPrediction(result)
	s.lastImageRef = imageRef
	s.lastUpdate = s.clock.Now()
}

// RecordHeartbeat marks p as seen now and returns the recorded time.
func (s *Store) RecordHeartbeat(p liveness.Peripheral) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.heartbeats.Record(p, now)
	return now
}

// Snapshot returns a consistent view of the state with connectivity
// evaluated at the current time. It never mutates the store: before the
// first result it reports timings computed from timing.DefaultCounts.
func (s *Store) Snapshot() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	view := StatusView{
		CameraConnected: s.heartbeats.IsConnected(liveness.Camera, now, liveness.FreshnessWindow),
		LightsConnected: s.heartbeats.IsConnected(liveness.Lights, now, liveness.FreshnessWindow),
	}
	view.CameraHeartbeat, _ = s.heartbeats.LastSeen(liveness.Camera)
	view.LightsHeartbeat, _ = s.heartbeats.LastSeen(liveness.Lights)

	if !s.hasResult {
		view.Defaulted = true
		view.LastCounts = timing.DefaultCounts
		view.LastTimings = timing.PredictCounts(timing.DefaultCounts)
		view.LastUpdate = now
		return view
	}

	view.LastCounts = s.lastCounts
	view.LastTimings = copyPrediction(s.lastResult)
	view.LastImageRef = s.lastImageRef
	view.LastUpdate = s.lastUpdate
	return view
}

// LatestTimings returns the latest result, or the default-derived one when
// nothing has been recorded.
func (s *Store) LatestTimings() timing.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasResult {
		return timing.PredictCounts(timing.DefaultCounts)
	}
	return copyPrediction(s.lastResult)
}

// copyPrediction detaches the analysis counts slice, the only reference
// field in a prediction.
func copyPrediction(p timing.Prediction) timing.Prediction {
	p.Analysis.Counts = append([]int(nil), p.Analysis.Counts...)
	return p
}
