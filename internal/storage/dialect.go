package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"budgetbook/internal/store"
)

// Dialect captures the differences between the SQL engines the store runs on.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder(n int) string
	// Encode converts a normalized column value to a driver argument.
	Encode(col store.Column, v any) any
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }
func (sqliteDialect) Placeholder(int) string { return "?" }

// Encode stores dates as TEXT (YYYY-MM-DD) and booleans as 0/1.
func (sqliteDialect) Encode(col store.Column, v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.DateOnly)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgresDialect) Encode(_ store.Column, v any) any { return v }

// SQLite and Postgres are the supported dialects.
var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
)

// decode converts a scanned driver value to the canonical Go type of col.
func decode(col store.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Kind {
	case store.KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		}
	case store.KindText:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case store.KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		}
	case store.KindDate:
		switch t := v.(type) {
		case time.Time:
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		case string:
			return parseDateText(t)
		case []byte:
			return parseDateText(string(t))
		}
	}
	return nil, fmt.Errorf("column %q: cannot decode %T", col.Name, v)
}

func parseDateText(s string) (time.Time, error) {
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	return time.Parse(time.DateOnly, strings.TrimSpace(s))
}
