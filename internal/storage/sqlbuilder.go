package storage

import (
	"fmt"
	"strings"

	"budgetbook/internal/store"
)

// builder accumulates SQL text and bind arguments for one statement.
type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func newBuilder(d Dialect) *builder { return &builder{d: d} }

func (b *builder) write(parts ...string) *builder {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
	return b
}

func (b *builder) bind(col store.Column, v any) string {
	b.args = append(b.args, b.d.Encode(col, v))
	return b.d.Placeholder(len(b.args))
}

func (b *builder) String() string { return b.sb.String() }

func selectList(cols store.Columns) string {
	return strings.Join(cols.Names(), ", ")
}

func buildInsert(d Dialect, table store.Table, rec store.Record) *builder {
	cols := store.Schema[table]
	b := newBuilder(d)
	var names, marks []string
	for _, c := range cols {
		v, ok := rec[c.Name]
		if !ok || (c.Name == store.ColID && v == nil) {
			continue
		}
		names = append(names, c.Name)
		marks = append(marks, b.bind(c, v))
	}
	if len(names) == 0 {
		b.write("INSERT INTO ", string(table), " DEFAULT VALUES")
	} else {
		b.write("INSERT INTO ", string(table), " (", strings.Join(names, ", "), ") VALUES (", strings.Join(marks, ", "), ")")
	}
	b.write(" RETURNING ", selectList(cols))
	return b
}

func buildUpdate(d Dialect, table store.Table, id int64, patch store.Record) *builder {
	cols := store.Schema[table]
	b := newBuilder(d)
	var sets []string
	for _, c := range cols {
		v, ok := patch[c.Name]
		if !ok || c.Name == store.ColID {
			continue
		}
		sets = append(sets, c.Name+" = "+b.bind(c, v))
	}
	idCol, _ := cols.Lookup(store.ColID)
	b.write("UPDATE ", string(table), " SET ", strings.Join(sets, ", "),
		" WHERE id = ", b.bind(idCol, id), " RETURNING ", selectList(cols))
	return b
}

func buildDelete(d Dialect, table store.Table, id int64) *builder {
	idCol, _ := store.Schema[table].Lookup(store.ColID)
	b := newBuilder(d)
	b.write("DELETE FROM ", string(table), " WHERE id = ", b.bind(idCol, id))
	return b
}

// buildSelect renders a filtered, ordered select. Ascending keys put NULLs first and
// descending keys put them last, so every backend orders rows the same way. Ties are
// broken by id.
func buildSelect(d Dialect, table store.Table, filters []store.Filter, order []store.Order) (*builder, error) {
	cols := store.Schema[table]
	b := newBuilder(d)
	b.write("SELECT ", selectList(cols), " FROM ", string(table))

	var where []string
	for _, f := range filters {
		col, _ := cols.Lookup(f.Column)
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				where = append(where, col.Name+" IS NULL")
				continue
			}
			v, err := col.Normalize(f.Value)
			if err != nil {
				return nil, err
			}
			if v == nil {
				where = append(where, col.Name+" IS NULL")
				continue
			}
			where = append(where, col.Name+" = "+b.bind(col, v))
		case store.OpGte, store.OpLte:
			v, err := col.Normalize(f.Value)
			if err != nil {
				return nil, err
			}
			if v == nil {
				where = append(where, "1 = 0")
				continue
			}
			op := ">="
			if f.Op == store.OpLte {
				op = "<="
			}
			where = append(where, col.Name+" "+op+" "+b.bind(col, v))
		case store.OpIn:
			ids := f.Value.([]int64)
			if len(ids) == 0 {
				where = append(where, "1 = 0")
				continue
			}
			marks := make([]string, len(ids))
			for i, id := range ids {
				marks[i] = b.bind(col, id)
			}
			where = append(where, col.Name+" IN ("+strings.Join(marks, ", ")+")")
		default:
			return nil, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	if len(where) > 0 {
		b.write(" WHERE ", strings.Join(where, " AND "))
	}

	keys := make([]string, 0, len(order)+1)
	for _, o := range order {
		if o.Desc {
			keys = append(keys, o.Column+" DESC NULLS LAST")
		} else {
			keys = append(keys, o.Column+" ASC NULLS FIRST")
		}
	}
	keys = append(keys, store.ColID+" ASC")
	b.write(" ORDER BY ", strings.Join(keys, ", "))
	return b, nil
}
