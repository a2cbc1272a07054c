package healthrpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/smart-traffic/internal/liveness"
	"github.com/banshee-data/smart-traffic/internal/state"
	"github.com/banshee-data/smart-traffic/internal/timeutil"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func check(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestNewServer_InitialStatus(t *testing.T) {
	s := NewServer(Config{}, state.NewStore(nil), nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, CameraService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, LightsService))
}

func TestSync(t *testing.T) {
	s := NewServer(Config{}, state.NewStore(nil), nil)

	s.Sync(state.StatusView{CameraConnected: true})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, CameraService))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, LightsService))

	s.Sync(state.StatusView{LightsConnected: true})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, s, CameraService))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, s, LightsService))
}

func TestRefresh_FollowsLiveness(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	store := state.NewStore(clock)
	s := NewServer(Config{RefreshInterval: time.Second}, store, clock)

	store.RecordHeartbeat(liveness.Camera)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Refresh(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		return check(t, s, CameraService) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 5*time.Millisecond)

	// Keep the mock clock moving until the ticker has fired past the
	// freshness window.
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return check(t, s, CameraService) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartStop_ServesHealth(t *testing.T) {
	s := NewServer(Config{ListenAddr: "127.0.0.1:0"}, state.NewStore(nil), nil)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Error(t, s.Start(), "second Start must fail")

	conn, err := grpc.NewClient(s.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	s.Sync(state.StatusView{LightsConnected: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: LightsService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServiceFor(t *testing.T) {
	assert.Equal(t, "camera", ServiceFor(liveness.Camera))
	assert.Equal(t, "lights", ServiceFor(liveness.Lights))
}
