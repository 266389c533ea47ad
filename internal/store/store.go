package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/helpers"
	"github.com/spektr-org/finchat/translator"
)

// ============================================================================
// STORE — The one long-lived holder of the dataset
// ============================================================================
// Snapshots are immutable. Reload builds a new snapshot and swaps the pointer,
// so a query that already took a view keeps reading it undisturbed.
// ============================================================================

// ErrNotLoaded is returned when no dataset has been loaded yet.
var ErrNotLoaded = errors.New("dataset not loaded")

// Snapshot is one loaded version of the dataset.
type Snapshot struct {
	View     engine.RecordView
	Stats    helpers.LoadStats
	Summary  *translator.DataSummary
	Source   string
	LoadedAt time.Time
}

// Store holds the current snapshot and reloads it on demand or on a schedule.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]

	reloadMu sync.Mutex
	cron     *cron.Cron
	logger   arbor.ILogger
}

// New creates a store reading the CSV at path. Nothing is loaded until Load.
func New(path string, logger arbor.ILogger) *Store {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Store{path: path, logger: logger}
}

// NewFromView creates a store around an already parsed view.
func NewFromView(view engine.RecordView, logger arbor.ILogger) *Store {
	s := New("", logger)
	s.current.Store(newSnapshot(view, helpers.LoadStats{Rows: view.Len(), Loaded: view.Len()}, "memory"))
	return s
}

func newSnapshot(view engine.RecordView, stats helpers.LoadStats, source string) *Snapshot {
	return &Snapshot{
		View:     view,
		Stats:    stats,
		Summary:  translator.BuildDataSummary(view),
		Source:   source,
		LoadedAt: time.Now(),
	}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// View returns the current view; an empty view before the first load.
func (s *Store) View() engine.RecordView {
	if snap := s.current.Load(); snap != nil {
		return snap.View
	}
	return engine.NewSliceView(nil)
}

// Load reads and parses the CSV and swaps it in. On failure the previous
// snapshot stays in place.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if s.path == "" {
		return nil, fmt.Errorf("reload: %w: no dataset path configured", ErrNotLoaded)
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", s.path, err)
	}
	view, stats, err := helpers.ParseCSVView(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", s.path, err)
	}

	snap := newSnapshot(view, stats, s.path)
	s.current.Store(snap)

	event := s.logger.Info().
		Str("path", s.path).
		Int("rows", stats.Rows).
		Int("loaded", stats.Loaded).
		Int("bad_value", stats.BadValue).
		Dur("duration", time.Since(start))
	if len(stats.Missing) > 0 {
		event = event.Strs("missing_columns", stats.Missing)
	}
	event.Msg("Dataset loaded")
	return snap, nil
}

// Schedule reloads the dataset on a cron schedule until Stop.
func (s *Store) Schedule(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.scheduledReload); err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}
	s.reloadMu.Lock()
	s.cron = c
	s.reloadMu.Unlock()

	c.Start()
	s.logger.Info().Str("schedule", spec).Msg("Dataset reload scheduler started")
	return nil
}

func (s *Store) scheduledReload() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := s.Load(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled dataset reload failed")
	}
}

// Stop halts the reload scheduler and waits for a running reload.
func (s *Store) Stop() {
	s.reloadMu.Lock()
	c := s.cron
	s.cron = nil
	s.reloadMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info().Msg("Dataset reload scheduler stopped")
	}
}
