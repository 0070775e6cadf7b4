// Package session owns the household's loaded snapshot of expense rows and
// the month being viewed. Row positions handed out by a snapshot are only
// honoured until the next insert or delete; both trigger a full reload.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	ports "kakeibo/internal/sheets"
)

// ErrStaleRowPosition is returned when a position does not belong to the
// current snapshot, or was handed out by an earlier one.
var ErrStaleRowPosition = errors.New("row position is not part of the current snapshot")

// ErrReloadFailed means a mutation was written but the snapshot could not be
// refreshed afterwards.
var ErrReloadFailed = errors.New("change saved but reload failed")

type Session struct {
	store  ports.Store
	views  cache.Cache[core.Cursor, core.MonthlyView]
	now    func() time.Time
	logger *applog.Logger

	mu        sync.Mutex
	snapshot  []core.ExpenseRecord
	positions map[core.RowPosition]int
	loaded    bool
	loadedAt  time.Time
	cursor    core.Cursor

	// generation numbers snapshots; it grows on every successful read.
	generation uint64
}

type Option func(*Session)

// WithClock replaces time.Now, which decides the starting cursor and how far
// forward the cursor may move.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithViewCache memoises computed views per month until the next reload.
func WithViewCache(c cache.Cache[core.Cursor, core.MonthlyView]) Option {
	return func(s *Session) { s.views = c }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session over store with the cursor on the current month.
// Nothing is read until the first Reload or View.
func New(store ports.Store, opts ...Option) *Session {
	s := &Session{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentSession)
	s.cursor = core.CursorAt(s.now())
	return s
}

// Reload replaces the snapshot with the store's current rows.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *Session) reloadLocked(ctx context.Context) error {
	recs, err := s.store.ReadAll(ctx)
	if err != nil {
		s.loaded = false
		return fmt.Errorf("reload: %w", err)
	}
	positions := make(map[core.RowPosition]int, len(recs))
	for i, r := range recs {
		positions[r.Position] = i
	}
	s.snapshot = recs
	s.positions = positions
	s.loaded = true
	s.loadedAt = s.now()
	s.generation++
	if s.views != nil {
		s.views.Purge()
	}
	s.logger.DebugContext(ctx, "Snapshot reloaded", applog.FieldRecordCount, len(recs))
	return nil
}

func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.reloadLocked(ctx)
}

// Cursor returns the month being viewed.
func (s *Session) Cursor() core.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Prev moves the cursor one month back.
func (s *Session) Prev() core.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.cursor.Prev()
	return s.cursor
}

// Next moves the cursor one month forward, never past the current month.
func (s *Session) Next() core.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = s.cursor.Next(s.now())
	return s.cursor
}

// CanAdvance reports whether Next would move the cursor.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.CanAdvance(s.now())
}

// View computes the ledger for the cursor month.
func (s *Session) View(ctx context.Context) (core.MonthlyView, error) {
	s.mu.Lock()
	c := s.cursor
	s.mu.Unlock()
	return s.ViewMonth(ctx, c)
}

// ViewMonth computes the ledger for c without moving the cursor. The
// returned view belongs to the caller.
func (s *Session) ViewMonth(ctx context.Context, c core.Cursor) (core.MonthlyView, error) {
	v, _, err := s.ViewMonthAt(ctx, c)
	return v, err
}

// ViewMonthAt is ViewMonth plus the generation of the snapshot the view was
// computed from. Edit and Remove accept positions only with that generation.
func (s *Session) ViewMonthAt(ctx context.Context, c core.Cursor) (core.MonthlyView, uint64, error) {
	if !c.Valid() {
		return core.MonthlyView{}, 0, fmt.Errorf("invalid month %d", c.Month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return core.MonthlyView{}, 0, err
	}
	if s.views != nil {
		if v, ok := s.views.Get(c); ok {
			return v.Clone(), s.generation, nil
		}
	}
	v := core.ComputeMonthlyView(s.snapshot, c.Year, c.Month)
	if s.views != nil {
		s.views.Set(c, v)
		v = v.Clone()
	}
	return v, s.generation, nil
}

// Generation identifies the loaded snapshot; zero before the first load.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return 0
	}
	return s.generation
}

// Snapshot returns a copy of every loaded record in store order.
func (s *Session) Snapshot(ctx context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(s.snapshot), nil
}

// Record returns the snapshot row at pos.
func (s *Session) Record(ctx context.Context, pos core.RowPosition) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return core.ExpenseRecord{}, err
	}
	i, err := s.lookup(pos)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	return s.snapshot[i], nil
}

// LoadedAt is when the snapshot was last read; zero before the first load.
func (s *Session) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return time.Time{}
	}
	return s.loadedAt
}

// Add appends r and reloads.
func (s *Session) Add(ctx context.Context, r core.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Append(ctx, r); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return s.afterMutation(ctx)
}

// Edit overwrites the row at pos, which must come from snapshot generation
// gen. Anything else is refused with ErrStaleRowPosition.
func (s *Session) Edit(ctx context.Context, gen uint64, pos core.RowPosition, r core.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := s.checkGeneration(gen); err != nil {
		return err
	}
	if _, err := s.lookup(pos); err != nil {
		return err
	}
	if err := s.store.Update(ctx, pos, r); err != nil {
		return fmt.Errorf("update %s: %w", pos, err)
	}
	return s.afterMutation(ctx)
}

// Remove deletes the row at pos, taken from snapshot generation gen, and
// reloads, since every later position shifts.
func (s *Session) Remove(ctx context.Context, gen uint64, pos core.RowPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := s.checkGeneration(gen); err != nil {
		return err
	}
	if _, err := s.lookup(pos); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, pos); err != nil {
		return fmt.Errorf("delete %s: %w", pos, err)
	}
	return s.afterMutation(ctx)
}

// Reset forgets the snapshot and returns the cursor to the current month.
// Used on logout.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.positions = nil
	s.loaded = false
	s.cursor = core.CursorAt(s.now())
	if s.views != nil {
		s.views.Purge()
	}
}

// afterMutation reloads; on failure the snapshot is dropped so no stale
// position can be used, and the next call reloads again.
func (s *Session) afterMutation(ctx context.Context) error {
	if err := s.reloadLocked(ctx); err != nil {
		s.snapshot = nil
		s.positions = nil
		s.logger.WarnContext(ctx, "Reload after mutation failed", applog.FieldError, err)
		return fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	return nil
}

func (s *Session) checkGeneration(gen uint64) error {
	if gen != s.generation {
		return fmt.Errorf("%w: snapshot %d, current %d", ErrStaleRowPosition, gen, s.generation)
	}
	return nil
}

func (s *Session) lookup(pos core.RowPosition) (int, error) {
	if !pos.Persisted() {
		return 0, core.ErrNotPersisted
	}
	i, ok := s.positions[pos]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStaleRowPosition, pos)
	}
	return i, nil
}
