// Package memory is an in-process record store that numbers rows the way the
// spreadsheet does: the first record sits at row 2, and deleting a row moves
// every later row up by one.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

const firstRow = 2

type Store struct {
	mu    sync.Mutex
	items []core.ExpenseRecord
}

var _ ports.Store = (*Store)(nil)

// New returns a store seeded with recs in row order. Positions on recs are
// ignored.
func New(recs ...core.ExpenseRecord) *Store {
	return &Store{items: append([]core.ExpenseRecord(nil), recs...)}
}

// ReadAll returns copies of every row with its current position.
func (s *Store) ReadAll(_ context.Context) ([]core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExpenseRecord, len(s.items))
	for i, r := range s.items {
		// Reparse from the stored cells so callers see what a real store returns.
		out[i] = core.NewRecord(r.Tuple(), core.RowPosition(i+firstRow))
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, r core.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Position = 0
	s.items = append(s.items, r)
	return nil
}

func (s *Store) Update(_ context.Context, pos core.RowPosition, r core.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.index(pos)
	if err != nil {
		return err
	}
	r.Position = 0
	s.items[i] = r
	return nil
}

func (s *Store) Delete(_ context.Context, pos core.RowPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.index(pos)
	if err != nil {
		return err
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Len reports the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) index(pos core.RowPosition) (int, error) {
	if int(pos) < firstRow {
		return 0, fmt.Errorf("%w: %s", core.ErrInvalidRowNumber, pos)
	}
	i := int(pos) - firstRow
	if i >= len(s.items) {
		return 0, fmt.Errorf("%w: %s", ports.ErrRowNotFound, pos)
	}
	return i, nil
}
