package store

import (
	"context"
	"errors"
	"fmt"
)

// PartialWriteError reports a failed multi-record write whose rollback also failed,
// so the store may hold part of the write.
type PartialWriteError struct {
	Err     error
	UndoErr error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %v (rollback failed: %v)", e.Err, e.UndoErr)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Atomic runs fn as one unit of work against s. Stores implementing Transactor run
// fn inside a transaction; other stores go through Journaled.
func Atomic(ctx context.Context, s Store, fn func(tx Store) error) error {
	if tx, ok := s.(Transactor); ok {
		return tx.WithinTx(ctx, fn)
	}
	return Journaled(ctx, s, fn)
}

// Journaled runs fn with every write made through the Store handed to it recorded,
// and undoes those writes in reverse order if fn fails. It does not isolate fn from
// concurrent writers.
func Journaled(ctx context.Context, s Store, fn func(tx Store) error) error {
	j := &journal{Store: s}
	err := fn(j)
	if err == nil {
		return nil
	}
	if undoErr := j.undo(ctx); undoErr != nil {
		return &PartialWriteError{Err: err, UndoErr: undoErr}
	}
	return err
}

type undoStep func(ctx context.Context) error

// journal records compensating actions for every successful write.
type journal struct {
	Store
	steps []undoStep
}

func (j *journal) Insert(ctx context.Context, table Table, rec Record) (Record, error) {
	out, err := j.Store.Insert(ctx, table, rec)
	if err != nil {
		return nil, err
	}
	id := out.Int64(ColID)
	j.steps = append(j.steps, func(ctx context.Context) error {
		return j.Store.Delete(ctx, table, id)
	})
	return out, nil
}

func (j *journal) Update(ctx context.Context, table Table, id int64, patch Record) (Record, error) {
	before, err := j.get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	out, err := j.Store.Update(ctx, table, id, patch)
	if err != nil {
		return nil, err
	}
	restore := make(Record, len(patch))
	for k := range patch {
		restore[k] = before[k]
	}
	j.steps = append(j.steps, func(ctx context.Context) error {
		_, err := j.Store.Update(ctx, table, id, restore)
		return err
	})
	return out, nil
}

func (j *journal) Delete(ctx context.Context, table Table, id int64) error {
	before, err := j.get(ctx, table, id)
	if err != nil {
		return err
	}
	if err := j.Store.Delete(ctx, table, id); err != nil {
		return err
	}
	j.steps = append(j.steps, func(ctx context.Context) error {
		_, err := j.Store.Insert(ctx, table, before)
		return err
	})
	return nil
}

func (j *journal) get(ctx context.Context, table Table, id int64) (Record, error) {
	recs, err := j.Store.Query(ctx, table, []Filter{Eq(ColID, id)}, nil)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (j *journal) undo(ctx context.Context) error {
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		if err := j.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	j.steps = nil
	return errors.Join(errs...)
}
