package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/smart-traffic/internal/timing"
)

func TestHashCounter_KnownDigests(t *testing.T) {
	tests := []struct {
		path string
		want timing.Counts
	}{
		// sha256("traffic_20240101_120000_000000.jpg") starts 38918de54cbc7209
		{"captured_images/traffic_20240101_120000_000000.jpg", timing.Counts{12, 16, 9, 3}},
		// sha256("frame.jpg") starts 72a9ddeeee99fcc3
		{"frame.jpg", timing.Counts{16, 9, 13, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := HashCounter{}.Count(context.Background(), tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashCounter_UsesBaseNameOnly(t *testing.T) {
	a, err := HashCounter{}.Count(context.Background(), "/a/b/frame.jpg")
	require.NoError(t, err)
	b, err := HashCounter{}.Count(context.Background(), "other/frame.jpg")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashCounter_Bounds(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "traffic_x.jpg", ""} {
		counts, err := HashCounter{}.Count(context.Background(), name)
		require.NoError(t, err)
		for i, c := range counts {
			assert.GreaterOrEqual(t, c, 0, "%s[%d]", name, i)
			assert.LessOrEqual(t, c, MaxSimulatedCount, "%s[%d]", name, i)
		}
	}
}

func TestHashCounter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := HashCounter{}.Count(ctx, "frame.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCounterFunc(t *testing.T) {
	var c Counter = CounterFunc(func(context.Context, string) (timing.Counts, error) {
		return timing.Counts{1, 2, 3, 4}, nil
	})
	got, err := c.Count(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, timing.Counts{1, 2, 3, 4}, got)
}
