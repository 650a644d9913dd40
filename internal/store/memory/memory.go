// Package memory implements store.Store in process memory. It backs tests and the
// default "memory" backend.
package memory

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"budgetbook/internal/store"
)

type table struct {
	rows   map[int64]store.Record
	nextID int64
}

// Store is a mutex-guarded map of tables. Units of work run one at a time through
// WithinTx and are rolled back with the compensating journal of store.Journaled.
type Store struct {
	mu     sync.Mutex
	tables map[store.Table]*table
	hub    *store.Hub

	// txMu serializes units of work; single operations only take mu.
	txMu sync.Mutex
}

var _ store.Transactor = (*Store)(nil)

func New() *Store {
	s := &Store{tables: make(map[store.Table]*table), hub: store.NewHub()}
	for _, t := range store.Tables {
		s.tables[t] = &table{rows: make(map[int64]store.Record)}
	}
	return s
}

// NewFromFiles returns a Store seeded with reference data read from base:
// seed_categories.txt, seed_responsibles.txt and seed_payment_methods.txt, one
// description per line. Missing files fall back to a small default set.
func NewFromFiles(base string) *Store {
	s := New()
	seeds := []struct {
		table    store.Table
		file     string
		fallback []string
	}{
		{store.TableCategories, "seed_categories.txt", []string{"Groceries", "Home", "Transport"}},
		{store.TableResponsibles, "seed_responsibles.txt", []string{"Household"}},
		{store.TablePaymentMethods, "seed_payment_methods.txt", []string{"Cash"}},
	}
	for _, sd := range seeds {
		lines := readLines(filepath.Join(base, sd.file))
		if len(lines) == 0 {
			lines = sd.fallback
		}
		for _, d := range lines {
			rec := store.Record{store.ColDescription: d}
			if sd.table == store.TablePaymentMethods {
				rec[store.ColActive] = true
				rec[store.ColKind] = "cash"
			}
			s.insertLocked(sd.table, rec)
		}
	}
	return s
}

// WithinTx runs fn as a unit of work. Checks made through tx stay valid for the
// rest of fn against other units of work.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return store.Journaled(ctx, s, fn)
}

func (s *Store) table(name store.Table) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Insert stores rec. An explicit positive id is honoured when free, which lets the
// atomic journal restore deleted rows under their original id.
func (s *Store) Insert(_ context.Context, name store.Table, rec store.Record) (store.Record, error) {
	norm, err := store.NormalizeRecord(name, rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	t, err := s.table(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if id := norm.Int64(store.ColID); id > 0 {
		if _, exists := t.rows[id]; exists {
			s.mu.Unlock()
			return nil, fmt.Errorf("duplicate id %d in table %q", id, name)
		}
	}
	out := s.insertLocked(name, norm)
	s.mu.Unlock()

	s.hub.Publish(store.ChangeEvent{Table: name, Kind: store.ChangeInsert, ID: out.Int64(store.ColID)})
	return out, nil
}

func (s *Store) insertLocked(name store.Table, rec store.Record) store.Record {
	t := s.tables[name]
	row := make(store.Record, len(store.Schema[name]))
	for _, c := range store.Schema[name] {
		row[c.Name] = nil
	}
	for k, v := range rec {
		row[k] = v
	}
	id := rec.Int64(store.ColID)
	if id <= 0 {
		t.nextID++
		id = t.nextID
	} else if id > t.nextID {
		t.nextID = id
	}
	row[store.ColID] = id
	t.rows[id] = row
	return row.Clone()
}

func (s *Store) Update(_ context.Context, name store.Table, id int64, patch store.Record) (store.Record, error) {
	norm, err := store.NormalizeRecord(name, patch)
	if err != nil {
		return nil, err
	}
	delete(norm, store.ColID)

	s.mu.Lock()
	t, err := s.table(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	for k, v := range norm {
		row[k] = v
	}
	out := row.Clone()
	s.mu.Unlock()

	s.hub.Publish(store.ChangeEvent{Table: name, Kind: store.ChangeUpdate, ID: id})
	return out, nil
}

func (s *Store) Delete(_ context.Context, name store.Table, id int64) error {
	s.mu.Lock()
	t, err := s.table(name)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := t.rows[id]; !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(t.rows, id)
	s.mu.Unlock()

	s.hub.Publish(store.ChangeEvent{Table: name, Kind: store.ChangeDelete, ID: id})
	return nil
}

// Query returns the rows of name matching every filter, sorted by order and then by
// id ascending. Null values sort first.
func (s *Store) Query(_ context.Context, name store.Table, filters []store.Filter, order []store.Order) ([]store.Record, error) {
	if err := store.ValidateFilters(name, filters, order); err != nil {
		return nil, err
	}
	cols := store.Schema[name]
	want := make([]store.Filter, len(filters))
	for i, f := range filters {
		if f.Op != store.OpIn {
			col, _ := cols.Lookup(f.Column)
			v, err := col.Normalize(f.Value)
			if err != nil && f.Value != nil {
				return nil, err
			}
			f.Value = v
		}
		want[i] = f
	}

	s.mu.Lock()
	t, err := s.table(name)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	out := make([]store.Record, 0, len(t.rows))
	for _, row := range t.rows {
		if matchAll(row, want) {
			out = append(out, row.Clone())
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b store.Record) int {
		for _, o := range order {
			c := compare(a[o.Column], b[o.Column])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Int64(store.ColID), b.Int64(store.ColID))
	})
	return out, nil
}

func (s *Store) OnChange(name store.Table, handler store.ChangeHandler) func() {
	return s.hub.Subscribe(name, handler)
}

func matchAll(row store.Record, filters []store.Filter) bool {
	for _, f := range filters {
		v := row[f.Column]
		switch f.Op {
		case store.OpEq:
			if compare(v, f.Value) != 0 {
				return false
			}
		case store.OpGte:
			if v == nil || compare(v, f.Value) < 0 {
				return false
			}
		case store.OpLte:
			if v == nil || compare(v, f.Value) > 0 {
				return false
			}
		case store.OpIn:
			id, ok := v.(int64)
			if !ok || !slices.Contains(f.Value.([]int64), id) {
				return false
			}
		}
	}
	return true
}

// compare orders two normalized column values. nil sorts before everything else.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
