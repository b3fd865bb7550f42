// Package storetest provides store wrappers for tests.
package storetest

import (
	"context"
	"sync"

	"pricewatch/internal/store"
)

// Faulty wraps a store.Store and fails calls with queued errors.
// Operations are keyed by method name, e.g. "ReadRows".
type Faulty struct {
	next store.Store

	mu       sync.Mutex
	failures map[string][]error
	calls    map[string]int
}

func NewFaulty(next store.Store) *Faulty {
	return &Faulty{
		next:     next,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext queues errs; each call of op consumes one before reaching the wrapped store.
func (f *Faulty) FailNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], errs...)
}

// Calls returns how often op was invoked, failed calls included.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) take(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	queue := f.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	f.failures[op] = queue[1:]
	return err
}

func (f *Faulty) EnsureTable(ctx context.Context, table string, header []string) error {
	if err := f.take("EnsureTable"); err != nil {
		return err
	}
	return f.next.EnsureTable(ctx, table, header)
}

func (f *Faulty) ReadRows(ctx context.Context, table string) ([][]string, error) {
	if err := f.take("ReadRows"); err != nil {
		return nil, err
	}
	return f.next.ReadRows(ctx, table)
}

func (f *Faulty) AppendRow(ctx context.Context, table string, row []string) error {
	if err := f.take("AppendRow"); err != nil {
		return err
	}
	return f.next.AppendRow(ctx, table, row)
}

func (f *Faulty) UpdateRow(ctx context.Context, table string, index int, row []string) error {
	if err := f.take("UpdateRow"); err != nil {
		return err
	}
	return f.next.UpdateRow(ctx, table, index, row)
}

func (f *Faulty) DeleteRow(ctx context.Context, table string, index int) error {
	if err := f.take("DeleteRow"); err != nil {
		return err
	}
	return f.next.DeleteRow(ctx, table, index)
}

func (f *Faulty) ReplaceRows(ctx context.Context, table string, rows [][]string) error {
	if err := f.take("ReplaceRows"); err != nil {
		return err
	}
	return f.next.ReplaceRows(ctx, table, rows)
}
