// Package vision turns a captured image into per-approach vehicle counts.
//
// No detector is wired in; HashCounter derives stable pseudo-counts from
// the image name so the rest of the pipeline can be exercised end to end.
package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/smart-traffic/internal/timing"
)

// MaxSimulatedCount bounds each HashCounter count (inclusive).
const MaxSimulatedCount = 20

// Counter counts vehicles per approach in a stored image.
type Counter interface {
	Count(ctx context.Context, imagePath string) (timing.Counts, error)
}

// HashCounter is a deterministic Counter keyed on the image's base name.
// The file contents are never read.
type HashCounter struct{}

// Count hashes the base name of imagePath with SHA-256 and reads four
// 16-bit groups from the leading hex digits, each reduced modulo 21.
func (HashCounter) Count(ctx context.Context, imagePath string) (timing.Counts, error) {
	if err := ctx.Err(); err != nil {
		return timing.Counts{}, err
	}

	sum := sha256.Sum256([]byte(filepath.Base(imagePath)))
	digest := hex.EncodeToString(sum[:])

	var counts timing.Counts
	for i := range counts {
		group := digest[i*4 : i*4+4]
		v, err := strconv.ParseUint(group, 16, 16)
		if err != nil {
			return timing.Counts{}, fmt.Errorf("failed to parse digest group %q: %w", group, err)
		}
		counts[i] = int(v % (MaxSimulatedCount + 1))
	}
	return counts, nil
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context, imagePath string) (timing.Counts, error)

func (f CounterFunc) Count(ctx context.Context, imagePath string) (timing.Counts, error) {
	return f(ctx, imagePath)
}
