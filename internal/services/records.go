package services

import (
	"context"
	"errors"
	"fmt"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// wrapStoreErr maps store failures to engine error kinds. Engine errors pass through
// untouched; a failed rollback becomes a StoreError with the partial-write marker.
func wrapStoreErr(op string, table store.Table, err error) error {
	if err == nil {
		return nil
	}
	var pw *store.PartialWriteError
	if errors.As(err, &pw) {
		return &core.StoreError{Op: op, Table: string(table), Partial: true, Err: err}
	}
	if errors.Is(err, core.ErrNotFound) || core.IsValidation(err) || core.IsReference(err) ||
		core.IsInUse(err) || core.IsStore(err) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, table, core.ErrNotFound)
	}
	return &core.StoreError{Op: op, Table: string(table), Err: err}
}

func dateValue(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func dayValue(n int) any {
	if n == 0 {
		return nil
	}
	return int64(n)
}

func expenseToRecord(e core.Expense) store.Record {
	return store.Record{
		store.ColDescription:      e.Description,
		store.ColAmountCents:      e.Amount.Cents,
		store.ColCategoryID:       e.CategoryID,
		store.ColResponsibleID:    e.ResponsibleID,
		store.ColPaymentMethodID:  e.PaymentMethodID,
		store.ColPaid:             e.Paid,
		store.ColPurchaseDate:     dateValue(e.PurchaseDate),
		store.ColDueDate:          dateValue(e.DueDate),
		store.ColInstallmentCount: int64(e.InstallmentCount),
		store.ColOrigin:           string(e.Origin),
		store.ColUserID:           e.UserID,
	}
}

func expenseFromRecord(r store.Record) core.Expense {
	return core.Expense{
		ID:               r.Int64(store.ColID),
		Description:      r.Text(store.ColDescription),
		Amount:           core.Money{Cents: r.Int64(store.ColAmountCents)},
		CategoryID:       r.Int64(store.ColCategoryID),
		ResponsibleID:    r.Int64(store.ColResponsibleID),
		PaymentMethodID:  r.Int64(store.ColPaymentMethodID),
		Paid:             r.Bool(store.ColPaid),
		PurchaseDate:     core.DateOf(r.Time(store.ColPurchaseDate)),
		DueDate:          core.DateOf(r.Time(store.ColDueDate)),
		InstallmentCount: int(r.Int64(store.ColInstallmentCount)),
		Origin:           core.Origin(r.Text(store.ColOrigin)),
		UserID:           r.Text(store.ColUserID),
	}
}

func installmentToRecord(in core.Installment) store.Record {
	return store.Record{
		store.ColExpenseID:   in.ExpenseID,
		store.ColNumber:      int64(in.Number),
		store.ColAmountCents: in.Amount.Cents,
		store.ColDueDate:     dateValue(in.DueDate),
		store.ColPaid:        in.Paid,
	}
}

func installmentFromRecord(r store.Record) core.Installment {
	return core.Installment{
		ID:        r.Int64(store.ColID),
		ExpenseID: r.Int64(store.ColExpenseID),
		Number:    int(r.Int64(store.ColNumber)),
		Amount:    core.Money{Cents: r.Int64(store.ColAmountCents)},
		DueDate:   core.DateOf(r.Time(store.ColDueDate)),
		Paid:      r.Bool(store.ColPaid),
	}
}

func categoryFromRecord(r store.Record) core.Category {
	return core.Category{ID: r.Int64(store.ColID), Description: r.Text(store.ColDescription)}
}

func responsibleFromRecord(r store.Record) core.Responsible {
	return core.Responsible{ID: r.Int64(store.ColID), Description: r.Text(store.ColDescription)}
}

func paymentMethodToRecord(p core.PaymentMethod) store.Record {
	return store.Record{
		store.ColDescription: p.Description,
		store.ColActive:      p.Active,
		store.ColClosingDay:  dayValue(p.ClosingDay),
		store.ColDueDay:      dayValue(p.DueDay),
		store.ColKind:        string(p.Kind),
	}
}

func paymentMethodFromRecord(r store.Record) core.PaymentMethod {
	return core.PaymentMethod{
		ID:          r.Int64(store.ColID),
		Description: r.Text(store.ColDescription),
		Active:      r.Bool(store.ColActive),
		ClosingDay:  int(r.Int64(store.ColClosingDay)),
		DueDay:      int(r.Int64(store.ColDueDay)),
		Kind:        core.PaymentKind(r.Text(store.ColKind)),
	}
}

func cutoffFromRecord(r store.Record) core.CutoffConfig {
	return core.CutoffConfig{ID: r.Int64(store.ColID), CutoffDate: core.DateOf(r.Time(store.ColCutoffDate))}
}

// getByID returns the single row of table with the given id, or store.ErrNotFound.
func getByID(ctx context.Context, st store.Store, table store.Table, id int64) (store.Record, error) {
	rows, err := st.Query(ctx, table, []store.Filter{store.Eq(store.ColID, id)}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return rows[0], nil
}

// loadInstallments returns the installments of expenseID ordered by number.
func loadInstallments(ctx context.Context, st store.Store, expenseID int64) ([]core.Installment, error) {
	rows, err := st.Query(ctx, store.TableInstallments,
		[]store.Filter{store.Eq(store.ColExpenseID, expenseID)},
		[]store.Order{store.Asc(store.ColNumber)})
	if err != nil {
		return nil, err
	}
	out := make([]core.Installment, len(rows))
	for i, r := range rows {
		out[i] = installmentFromRecord(r)
	}
	return out, nil
}
