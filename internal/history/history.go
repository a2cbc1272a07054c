// Package history keeps a bounded, in-memory log of computed signal
// timings. It is backed by an in-memory SQLite database so it can be
// inspected with SQL at runtime, and it is discarded on restart.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/smart-traffic/internal/timeutil"
	"github.com/banshee-data/smart-traffic/internal/timing"
)

// DefaultLimit is the retention used when NewStore is given a limit <= 0.
const DefaultLimit = 500

// Source names where a result's counts came from.
type Source string

const (
	SourceImage  Source = "image"
	SourceCounts Source = "counts"
)

// Entry is one recorded timing result.
type Entry struct {
	ID         string
	RecordedAt time.Time
	Source     Source
	Counts     timing.Counts
	Plan       timing.Plan
	Pattern    timing.Pattern
	Ratio      float64
	ImagePath  string
}

// MarshalJSON renders the entry with wire timestamps and a counts list.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string         `json:"id"`
		RecordedAt string         `json:"recorded_at"`
		Source     Source         `json:"source"`
		Counts     []int          `json:"counts"`
		Plan       timing.Plan    `json:"timings"`
		Pattern    timing.Pattern `json:"pattern"`
		Ratio      float64        `json:"ratio"`
		ImagePath  string         `json:"image_path,omitempty"`
	}{
		ID:         e.ID,
		RecordedAt: timeutil.FormatUTC(e.RecordedAt),
		Source:     e.Source,
		Counts:     e.Counts.Slice(),
		Plan:       e.Plan,
		Pattern:    e.Pattern,
		Ratio:      e.Ratio,
		ImagePath:  e.ImagePath,
	})
}

// Store is the result history.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
	limit int
}

// NewStore opens a fresh in-memory history that retains at most limit
// entries.
func NewStore(clock timeutil.Clock, limit int) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := migrateUp(db, migrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clock: clock, limit: limit}, nil
}

// Close releases the database; all history is lost.
func (s *Store) Close() error {
	return s.db.Close()
}

// Limit returns the retention cap.
func (s *Store) Limit() int { return s.limit }

// Record appends a result and prunes anything beyond the retention cap.
func (s *Store) Record(ctx context.Context, source Source, result timing.Prediction, imagePath string) (Entry, error) {
	counts, err := timing.NewCounts(result.Analysis.Counts)
	if err != nil {
		return Entry{}, fmt.Errorf("result carries invalid counts: %w", err)
	}

	e := Entry{
		ID:         uuid.NewString(),
		RecordedAt: s.clock.Now().UTC(),
		Source:     source,
		Counts:     counts,
		Plan:       result.Predictions,
		Pattern:    result.Analysis.Pattern,
		Ratio:      result.Analysis.Ratio,
		ImagePath:  imagePath,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (
			id, recorded_at_us, source, north, east, south, west,
			ns_green, ew_green, yellow_time, all_red_time, total_cycle,
			pattern, ratio, image_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RecordedAt.UnixMicro(), string(e.Source),
		counts[timing.North], counts[timing.East], counts[timing.South], counts[timing.West],
		e.Plan.NSGreen, e.Plan.EWGreen, e.Plan.YellowTime, e.Plan.AllRedTime, e.Plan.TotalCycle,
		string(e.Pattern), e.Ratio, e.ImagePath,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM results WHERE seq NOT IN (
			SELECT seq FROM results ORDER BY seq DESC LIMIT ?
		)`, s.limit)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("failed to commit history entry: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 or above
// the retention cap returns everything retained.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at_us, source, north, east, south, west,
			ns_green, ew_green, yellow_time, all_red_time, total_cycle,
			pattern, ratio, image_path
		FROM results
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			micros    int64
			source    string
			pattern   string
			n, ea, so int
			w         int
		)
		if err := rows.Scan(
			&e.ID, &micros, &source, &n, &ea, &so, &w,
			&e.Plan.NSGreen, &e.Plan.EWGreen, &e.Plan.YellowTime, &e.Plan.AllRedTime, &e.Plan.TotalCycle,
			&pattern, &e.Ratio, &e.ImagePath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.RecordedAt = time.UnixMicro(micros).UTC()
		e.Source = Source(source)
		e.Pattern = timing.Pattern(pattern)
		e.Counts = timing.Counts{n, ea, so, w}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// Len returns the number of retained entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
