// Package storage implements store.Store on SQL databases: SQLite through the pure-Go
// modernc driver and PostgreSQL through pgx. Schemas are managed by embedded
// golang-migrate migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"budgetbook/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// querier is the subset of *sql.DB and *sql.Tx the repository needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Repository is a store.Store over database/sql. It implements store.Transactor;
// change events raised inside a transaction are delivered only after commit.
type Repository struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	hub     *store.Hub

	// set on transaction-scoped copies
	mu      *sync.Mutex
	pending *[]store.ChangeEvent
}

var (
	_ store.Store      = (*Repository)(nil)
	_ store.Transactor = (*Repository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the SQLite database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	if err := RunSQLiteMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return newRepository(db, SQLite), nil
}

// NewPostgresRepository connects to dsn through the pgx stdlib driver and applies
// pending migrations.
func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	if err := RunPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return newRepository(db, Postgres), nil
}

func newRepository(db *sql.DB, d Dialect) *Repository {
	return &Repository{db: db, q: db, dialect: d, hub: store.NewHub()}
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Dialect reports which SQL engine backs the repository.
func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) Insert(ctx context.Context, table store.Table, rec store.Record) (store.Record, error) {
	norm, err := store.NormalizeRecord(table, rec)
	if err != nil {
		return nil, err
	}
	b := buildInsert(r.dialect, table, norm)
	out, err := r.queryOne(ctx, table, b)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", table, err)
	}
	r.emit(store.ChangeEvent{Table: table, Kind: store.ChangeInsert, ID: out.Int64(store.ColID)})
	return out, nil
}

func (r *Repository) Update(ctx context.Context, table store.Table, id int64, patch store.Record) (store.Record, error) {
	norm, err := store.NormalizeRecord(table, patch)
	if err != nil {
		return nil, err
	}
	delete(norm, store.ColID)
	if len(norm) == 0 {
		rows, err := r.Query(ctx, table, []store.Filter{store.Eq(store.ColID, id)}, nil)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, store.ErrNotFound
		}
		return rows[0], nil
	}

	b := buildUpdate(r.dialect, table, id, norm)
	out, err := r.queryOne(ctx, table, b)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update %s %d: %w", table, id, err)
	}
	r.emit(store.ChangeEvent{Table: table, Kind: store.ChangeUpdate, ID: id})
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, table store.Table, id int64) error {
	if _, ok := store.Schema[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	b := buildDelete(r.dialect, table, id)
	res, err := r.q.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	r.emit(store.ChangeEvent{Table: table, Kind: store.ChangeDelete, ID: id})
	return nil
}

func (r *Repository) Query(ctx context.Context, table store.Table, filters []store.Filter, order []store.Order) ([]store.Record, error) {
	if err := store.ValidateFilters(table, filters, order); err != nil {
		return nil, err
	}
	b, err := buildSelect(r.dialect, table, filters, order)
	if err != nil {
		return nil, err
	}
	rows, err := r.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRecords(rows, store.Schema[table])
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return out, nil
}

func (r *Repository) OnChange(table store.Table, handler store.ChangeHandler) func() {
	return r.hub.Subscribe(table, handler)
}

// WithinTx runs fn inside a database transaction. Nested calls reuse the outer
// transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if r.pending != nil {
		return fn(r)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	var pending []store.ChangeEvent
	txRepo := &Repository{
		db:      r.db,
		q:       sqlTx,
		dialect: r.dialect,
		hub:     r.hub,
		mu:      &sync.Mutex{},
		pending: &pending,
	}

	if err := fn(txRepo); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "dialect", r.dialect.Name(), "error", rbErr)
			return &store.PartialWriteError{Err: err, UndoErr: rbErr}
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, ev := range pending {
		r.hub.Publish(ev)
	}
	return nil
}

func (r *Repository) emit(ev store.ChangeEvent) {
	if r.pending == nil {
		r.hub.Publish(ev)
		return
	}
	r.mu.Lock()
	*r.pending = append(*r.pending, ev)
	r.mu.Unlock()
}

func (r *Repository) queryOne(ctx context.Context, table store.Table, b *builder) (store.Record, error) {
	rows, err := r.q.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows, store.Schema[table])
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return recs[0], nil
}

func scanRecords(rows *sql.Rows, cols store.Columns) ([]store.Record, error) {
	var out []store.Record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec := make(store.Record, len(cols))
		for i, c := range cols {
			v, err := decode(c, raw[i])
			if err != nil {
				return nil, err
			}
			rec[c.Name] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
