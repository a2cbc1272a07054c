// Package healthrpc serves the standard gRPC health protocol, with one
// service per peripheral mirroring its liveness.
package healthrpc

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/state"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
)

// Service names reported alongside the overall "" service.
const (
	CameraService = "camera"
	LightsService = "lights"
)

// ServiceFor returns the health service name of a peripheral.
func ServiceFor(p liveness.Peripheral) string {
	switch p {
	case liveness.Camera:
		return CameraService
	case liveness.Lights:
		return LightsService
	}
	return string(p)
}

// SnapshotSource is anything that yields a status snapshot.
type SnapshotSource interface {
	Snapshot() state.StatusView
}

// Config configures the health server.
type Config struct {
	ListenAddr      string
	RefreshInterval time.Duration
}

// Server owns a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	config   Config
	source   SnapshotSource
	clock    timeutil.Clock
	health   *health.Server
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a health server. Both peripherals start NOT_SERVING
// and the overall service starts SERVING.
func NewServer(cfg Config, source SnapshotSource, clock timeutil.Clock) *Server {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, p := range liveness.Peripherals {
		hs.SetServingStatus(ServiceFor(p), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return &Server{
		config: cfg,
		source: source,
		clock:  clock,
		health: hs,
		stopCh: make(chan struct{}),
	}
}

// Sync sets each peripheral's status from view.
func (s *Server) Sync(view state.StatusView) {
	s.health.SetServingStatus(CameraService, servingStatus(view.CameraConnected))
	s.health.SetServingStatus(LightsService, servingStatus(view.LightsConnected))
}

func servingStatus(connected bool) healthpb.HealthCheckResponse_ServingStatus {
	if connected {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Refresh syncs from the source every RefreshInterval until ctx is done
// or Stop is called. Liveness decays with time alone, so polling is the
// only way to notice a peripheral going quiet.
func (s *Server) Refresh(ctx context.Context) {
	ticker := s.clock.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	s.Sync(s.source.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C():
			s.Sync(s.source.Snapshot())
		}
	}
}

// Start listens on ListenAddr and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("health server already running")
	}

	lis, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis

	s.server = grpc.NewServer()
	healthpb.RegisterHealthServer(s.server, s.health)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("[healthrpc] gRPC health listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			log.Printf("[healthrpc] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop marks every service NOT_SERVING and stops the server gracefully.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stopCh)

	s.health.Shutdown()
	s.server.GracefulStop()
	s.wg.Wait()
	log.Printf("[healthrpc] gRPC health server stopped")
}
