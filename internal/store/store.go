// Package store defines the abstract tabular data store the engine writes to and
// reads from, together with the table schema shared by every implementation.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Update and Delete when no row has the given id.
var ErrNotFound = errors.New("record not found")

// Record is one row keyed by column name. Values are int64, string, bool,
// time.Time (calendar dates in UTC) or nil.
type Record map[string]any

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
	OpIn  Op = "in" // Value is []int64
)

// Filter is a single column predicate. Filters are combined with AND.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order is a single sort key.
type Order struct {
	Column string
	Desc   bool
}

func Eq(column string, v any) Filter { return Filter{Column: column, Op: OpEq, Value: v} }
func Gte(column string, v any) Filter { return Filter{Column: column, Op: OpGte, Value: v} }
func Lte(column string, v any) Filter { return Filter{Column: column, Op: OpLte, Value: v} }
func In(column string, ids []int64) Filter { return Filter{Column: column, Op: OpIn, Value: ids} }
func Asc(column string) Order { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// ChangeKind names the mutation that produced a ChangeEvent.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is the "data changed" signal. It carries no payload beyond identity:
// subscribers are expected to re-fetch whatever view they maintain.
type ChangeEvent struct {
	Table Table
	Kind  ChangeKind
	ID    int64
	At    time.Time
}

// ChangeHandler receives change events. Handlers must not block for long.
type ChangeHandler func(ChangeEvent)

// Store is the collaborator every engine operation goes through.
type Store interface {
	Insert(ctx context.Context, table Table, rec Record) (Record, error)
	Update(ctx context.Context, table Table, id int64, patch Record) (Record, error)
	Delete(ctx context.Context, table Table, id int64) error
	Query(ctx context.Context, table Table, filters []Filter, order []Order) ([]Record, error)
	// OnChange registers handler for mutations of table and returns a function that
	// removes the subscription.
	OnChange(table Table, handler ChangeHandler) (unsubscribe func())
}

// Transactor is implemented by stores that can run several writes atomically.
// The Store passed to fn must be used for every operation inside the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// ValidateFilters checks that every filter and order key names a known column of table.
func ValidateFilters(table Table, filters []Filter, order []Order) error {
	cols, ok := Schema[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for _, f := range filters {
		if _, ok := cols.Lookup(f.Column); !ok {
			return fmt.Errorf("unknown column %q in table %q", f.Column, table)
		}
		switch f.Op {
		case OpEq, OpGte, OpLte:
		case OpIn:
			if _, ok := f.Value.([]int64); !ok {
				return fmt.Errorf("filter %s on %q needs []int64", f.Op, f.Column)
			}
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	for _, o := range order {
		if _, ok := cols.Lookup(o.Column); !ok {
			return fmt.Errorf("unknown order column %q in table %q", o.Column, table)
		}
	}
	return nil
}

// ValidateRecord checks that every key of rec is a known column of table.
func ValidateRecord(table Table, rec Record) error {
	cols, ok := Schema[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for k := range rec {
		if _, ok := cols.Lookup(k); !ok {
			return fmt.Errorf("unknown column %q in table %q", k, table)
		}
	}
	return nil
}

// Int64 reads an integer column, returning 0 for nil.
func (r Record) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return 0
}

// Text reads a text column, returning "" for nil.
func (r Record) Text(col string) string {
	s, _ := r[col].(string)
	return s
}

// Bool reads a boolean column, returning false for nil.
func (r Record) Bool(col string) bool {
	b, _ := r[col].(bool)
	return b
}

// Time reads a date column, returning the zero time for nil.
func (r Record) Time(col string) time.Time {
	t, _ := r[col].(time.Time)
	return t
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NormalizeRecord validates rec against the schema of table and returns a copy with
// every value coerced to its canonical type.
func NormalizeRecord(table Table, rec Record) (Record, error) {
	cols, ok := Schema[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		col, ok := cols.Lookup(k)
		if !ok {
			return nil, fmt.Errorf("unknown column %q in table %q", k, table)
		}
		nv, err := col.Normalize(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}
