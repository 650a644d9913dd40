package store

import (
	"fmt"
	"time"
)

// Table identifies a logical table of the store.
type Table string

const (
	TableExpenses       Table = "expenses"
	TableInstallments   Table = "installments"
	TableCategories     Table = "categories"
	TableResponsibles   Table = "responsibles"
	TablePaymentMethods Table = "payment_methods"
	TableConfig         Table = "config"
)

// Tables lists every table in creation order.
var Tables = []Table{
	TableCategories,
	TableResponsibles,
	TablePaymentMethods,
	TableConfig,
	TableExpenses,
	TableInstallments,
}

// Kind is the value type of a column.
type Kind int

const (
	KindInt Kind = iota
	KindText
	KindBool
	KindDate
)

// Column describes one column. Nullable columns accept nil.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Columns is the ordered column list of a table. The first column is always "id".
type Columns []Column

// Lookup returns the column named name.
func (cs Columns) Lookup(name string) (Column, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Normalize coerces v to the canonical Go type of the column: int64, string, bool,
// or a UTC midnight time.Time for dates. nil is accepted only by nullable columns.
func (c Column) Normalize(v any) (any, error) {
	if v == nil {
		if !c.Nullable {
			return nil, fmt.Errorf("column %q cannot be null", c.Name)
		}
		return nil, nil
	}
	switch c.Kind {
	case KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindDate:
		if t, ok := v.(time.Time); ok {
			if t.IsZero() {
				if !c.Nullable {
					return nil, fmt.Errorf("column %q cannot be null", c.Name)
				}
				return nil, nil
			}
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return nil, fmt.Errorf("column %q: unexpected value type %T", c.Name, v)
}

// Names returns the column names in order.
func (cs Columns) Names() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// Column names shared by engine and stores.
const (
	ColID               = "id"
	ColDescription      = "description"
	ColAmountCents      = "amount_cents"
	ColCategoryID       = "category_id"
	ColResponsibleID    = "responsible_id"
	ColPaymentMethodID  = "payment_method_id"
	ColPaid             = "paid"
	ColPurchaseDate     = "purchase_date"
	ColDueDate          = "due_date"
	ColInstallmentCount = "installment_count"
	ColOrigin           = "origin"
	ColUserID           = "user_id"
	ColExpenseID        = "expense_id"
	ColNumber           = "number"
	ColActive           = "active"
	ColClosingDay       = "closing_day"
	ColDueDay           = "due_day"
	ColKind             = "kind"
	ColCutoffDate       = "cutoff_date"
)

// Schema is the column layout of every table.
var Schema = map[Table]Columns{
	TableExpenses: {
		{Name: ColID, Kind: KindInt},
		{Name: ColDescription, Kind: KindText},
		{Name: ColAmountCents, Kind: KindInt},
		{Name: ColCategoryID, Kind: KindInt},
		{Name: ColResponsibleID, Kind: KindInt},
		{Name: ColPaymentMethodID, Kind: KindInt},
		{Name: ColPaid, Kind: KindBool},
		{Name: ColPurchaseDate, Kind: KindDate},
		{Name: ColDueDate, Kind: KindDate, Nullable: true},
		{Name: ColInstallmentCount, Kind: KindInt},
		{Name: ColOrigin, Kind: KindText},
		{Name: ColUserID, Kind: KindText},
	},
	TableInstallments: {
		{Name: ColID, Kind: KindInt},
		{Name: ColExpenseID, Kind: KindInt},
		{Name: ColNumber, Kind: KindInt},
		{Name: ColAmountCents, Kind: KindInt},
		{Name: ColDueDate, Kind: KindDate, Nullable: true},
		{Name: ColPaid, Kind: KindBool},
	},
	TableCategories: {
		{Name: ColID, Kind: KindInt},
		{Name: ColDescription, Kind: KindText},
	},
	TableResponsibles: {
		{Name: ColID, Kind: KindInt},
		{Name: ColDescription, Kind: KindText},
	},
	TablePaymentMethods: {
		{Name: ColID, Kind: KindInt},
		{Name: ColDescription, Kind: KindText},
		{Name: ColActive, Kind: KindBool},
		{Name: ColClosingDay, Kind: KindInt, Nullable: true},
		{Name: ColDueDay, Kind: KindInt, Nullable: true},
		{Name: ColKind, Kind: KindText},
	},
	TableConfig: {
		{Name: ColID, Kind: KindInt},
		{Name: ColCutoffDate, Kind: KindDate, Nullable: true},
	},
}
