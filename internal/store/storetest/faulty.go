// Package storetest provides store wrappers for tests.
package storetest

import (
	"context"
	"errors"
	"sync"

	"budgetbook/internal/store"
)

// ErrInjected is returned by a Faulty store when a configured fault fires.
var ErrInjected = errors.New("injected store failure")

// Faulty wraps a Store and fails selected operations.
type Faulty struct {
	store.Store

	mu sync.Mutex
	// FailInsertAt fails the n-th insert (1-based) into the given table.
	FailInsertAt map[store.Table]int
	// FailDeletes fails every delete once set.
	FailDeletes bool
	// FailQueries fails every query once set.
	FailQueries bool

	inserts map[store.Table]int
}

func NewFaulty(s store.Store) *Faulty {
	return &Faulty{Store: s, FailInsertAt: map[store.Table]int{}, inserts: map[store.Table]int{}}
}

func (f *Faulty) Insert(ctx context.Context, table store.Table, rec store.Record) (store.Record, error) {
	f.mu.Lock()
	f.inserts[table]++
	fail := f.FailInsertAt[table] == f.inserts[table]
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Insert(ctx, table, rec)
}

func (f *Faulty) Delete(ctx context.Context, table store.Table, id int64) error {
	f.mu.Lock()
	fail := f.FailDeletes
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Store.Delete(ctx, table, id)
}

func (f *Faulty) Query(ctx context.Context, table store.Table, filters []store.Filter, order []store.Order) ([]store.Record, error) {
	f.mu.Lock()
	fail := f.FailQueries
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Store.Query(ctx, table, filters, order)
}

// SetFailDeletes toggles delete failures.
func (f *Faulty) SetFailDeletes(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailDeletes = v
}
