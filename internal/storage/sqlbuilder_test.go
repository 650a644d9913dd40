package storage

import (
	"testing"
	"time"

	"budgetbook/internal/store"
)

func TestBuildSelect(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		dialect  Dialect
		filters  []store.Filter
		order    []store.Order
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "sqlite date and bool encoding",
			dialect: SQLite,
			filters: []store.Filter{store.Eq(store.ColPaid, false), store.Gte(store.ColDueDate, day)},
			wantSQL: "SELECT id, expense_id, number, amount_cents, due_date, paid FROM installments" +
				" WHERE paid = ? AND due_date >= ? ORDER BY id ASC",
			wantArgs: []any{int64(0), "2024-06-01"},
		},
		{
			name:    "postgres placeholders and in",
			dialect: Postgres,
			filters: []store.Filter{store.In(store.ColExpenseID, []int64{4, 5}), store.Lte(store.ColNumber, 2)},
			order:   []store.Order{store.Desc(store.ColDueDate)},
			wantSQL: "SELECT id, expense_id, number, amount_cents, due_date, paid FROM installments" +
				" WHERE expense_id IN ($1, $2) AND number <= $3 ORDER BY due_date DESC NULLS LAST, id ASC",
			wantArgs: []any{int64(4), int64(5), int64(2)},
		},
		{
			name:     "null equality",
			dialect:  Postgres,
			filters:  []store.Filter{store.Eq(store.ColDueDate, nil)},
			order:    []store.Order{store.Asc(store.ColNumber)},
			wantSQL:  "SELECT id, expense_id, number, amount_cents, due_date, paid FROM installments WHERE due_date IS NULL ORDER BY number ASC NULLS FIRST, id ASC",
			wantArgs: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := buildSelect(tt.dialect, store.TableInstallments, tt.filters, tt.order)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if b.String() != tt.wantSQL {
				t.Errorf("sql =\n%s\nwant\n%s", b.String(), tt.wantSQL)
			}
			if len(b.args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", b.args, tt.wantArgs)
			}
			for i := range b.args {
				if b.args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %#v, want %#v", i, b.args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestBuildInsertSkipsMissingColumns(t *testing.T) {
	b := buildInsert(Postgres, store.TableCategories, store.Record{store.ColDescription: "Home"})
	want := "INSERT INTO categories (description) VALUES ($1) RETURNING id, description"
	if b.String() != want {
		t.Errorf("sql = %q, want %q", b.String(), want)
	}
}

func TestDecode(t *testing.T) {
	date := store.Column{Name: "d", Kind: store.KindDate}
	got, err := decode(date, "2024-06-10")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.(time.Time).Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("decoded %v", got)
	}
	b, err := decode(store.Column{Name: "b", Kind: store.KindBool}, int64(1))
	if err != nil || b != true {
		t.Errorf("decode bool = %v, %v", b, err)
	}
	if _, err := decode(store.Column{Name: "n", Kind: store.KindInt}, "x"); err == nil {
		t.Error("expected decode error for text in int column")
	}
}
