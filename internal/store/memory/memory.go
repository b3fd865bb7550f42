package memory

import (
	"context"
	"fmt"
	"sync"

	"pricewatch/internal/store"
)

// Store keeps tables in process memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string][][]string
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string][][]string)}
}

func copyRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}

// EnsureTable creates table with header unless it already exists.
func (s *Store) EnsureTable(_ context.Context, table string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.tables[table]
	if len(rows) == 0 {
		s.tables[table] = [][]string{copyRow(header)}
	}
	return nil
}

// ReadRows returns a copy of every row of table, header first.
func (s *Store) ReadRows(_ context.Context, table string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, store.NewError("ReadRows", table, store.ErrNotFound)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = copyRow(row)
	}
	return out, nil
}

// AppendRow adds row at the end of table.
func (s *Store) AppendRow(_ context.Context, table string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return store.NewError("AppendRow", table, store.ErrNotFound)
	}
	s.tables[table] = append(rows, copyRow(row))
	return nil
}

// UpdateRow overwrites the row at index.
func (s *Store) UpdateRow(_ context.Context, table string, index int, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return store.NewError("UpdateRow", table, store.ErrNotFound)
	}
	if index < 0 || index >= len(rows) {
		return store.NewError("UpdateRow", table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}
	rows[index] = copyRow(row)
	return nil
}

// DeleteRow removes the row at index and shifts later rows up.
func (s *Store) DeleteRow(_ context.Context, table string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		return store.NewError("DeleteRow", table, store.ErrNotFound)
	}
	if index < 0 || index >= len(rows) {
		return store.NewError("DeleteRow", table, fmt.Errorf("row %d: %w", index, store.ErrNotFound))
	}
	s.tables[table] = append(rows[:index:index], rows[index+1:]...)
	return nil
}

// ReplaceRows swaps the whole content of table for rows.
func (s *Store) ReplaceRows(_ context.Context, table string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; !ok {
		return store.NewError("ReplaceRows", table, store.ErrNotFound)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = copyRow(row)
	}
	s.tables[table] = out
	return nil
}
