package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// SplitAmount divides total into n parts with largest-remainder rounding: every part
// gets total/n cents and the first total%n parts get one extra cent, so the parts
// always sum to total. 100.00 over 3 gives 33.34, 33.33, 33.33.
func SplitAmount(total core.Money, n int) ([]core.Money, error) {
	if n < 1 {
		return nil, core.ErrInvalidInstallments
	}
	if err := total.Validate(); err != nil {
		return nil, err
	}
	base := total.Cents / int64(n)
	rem := total.Cents % int64(n)
	out := make([]core.Money, n)
	for i := range out {
		c := base
		if int64(i) < rem {
			c++
		}
		out[i] = core.Money{Cents: c}
	}
	return out, nil
}

// GenerateInstallments decomposes e into InstallmentCount obligations numbered 1..N.
// Amounts come from SplitAmount and due dates from schedule. Obligations start with
// the parent's paid flag.
func GenerateInstallments(e core.Expense, schedule Schedule) ([]core.Installment, error) {
	amounts, err := SplitAmount(e.Amount, e.InstallmentCount)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule = MonthlySchedule
	}
	dates, err := schedule(e.PurchaseDate, e.InstallmentCount)
	if err != nil {
		return nil, fmt.Errorf("schedule installments: %w", err)
	}
	if len(dates) != e.InstallmentCount {
		return nil, fmt.Errorf("schedule returned %d dates for %d installments", len(dates), e.InstallmentCount)
	}

	out := make([]core.Installment, e.InstallmentCount)
	for i := range out {
		out[i] = core.Installment{
			ExpenseID: e.ID,
			Number:    i + 1,
			Amount:    amounts[i],
			DueDate:   dates[i],
			Paid:      e.Paid,
		}
	}
	return out, nil
}

// insertInstallments generates and stores the obligations of e.
func insertInstallments(ctx context.Context, tx store.Store, e core.Expense, schedule Schedule) ([]core.Installment, error) {
	insts, err := GenerateInstallments(e, schedule)
	if err != nil {
		return nil, &core.ValidationError{Field: "installment_count", Err: err}
	}
	for i, in := range insts {
		rec, err := tx.Insert(ctx, store.TableInstallments, installmentToRecord(in))
		if err != nil {
			return nil, wrapStoreErr("insert", store.TableInstallments, err)
		}
		insts[i] = installmentFromRecord(rec)
	}
	return insts, nil
}

// Reconciler keeps installment payment status consistent with the parent expense.
type Reconciler struct {
	store store.Store
}

func NewReconciler(s store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// TogglePayment sets the paid flag of the given installments. Afterwards each
// affected parent is re-read: when none of its installments is unpaid the parent is
// marked paid. Un-paying installments never changes the parent.
func (r *Reconciler) TogglePayment(ctx context.Context, ids []int64, paid bool) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	err := store.Atomic(ctx, r.store, func(tx store.Store) error {
		rows, err := tx.Query(ctx, store.TableInstallments, []store.Filter{store.In(store.ColID, ids)}, nil)
		if err != nil {
			return wrapStoreErr("query", store.TableInstallments, err)
		}
		if len(rows) != len(ids) {
			return fmt.Errorf("installments %v: %w", missingIDs(ids, rows), core.ErrNotFound)
		}

		var parents []int64
		for _, row := range rows {
			id := row.Int64(store.ColID)
			if _, err := tx.Update(ctx, store.TableInstallments, id, store.Record{store.ColPaid: paid}); err != nil {
				return wrapStoreErr("update", store.TableInstallments, err)
			}
			parents = append(parents, row.Int64(store.ColExpenseID))
		}

		for _, parentID := range uniqueIDs(parents) {
			if err := r.propagateUp(ctx, tx, parentID); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapStoreErr("toggle", store.TableInstallments, err)
}

// propagateUp marks the parent paid when no unpaid installment remains.
func (r *Reconciler) propagateUp(ctx context.Context, tx store.Store, parentID int64) error {
	unpaid, err := tx.Query(ctx, store.TableInstallments, []store.Filter{
		store.Eq(store.ColExpenseID, parentID),
		store.Eq(store.ColPaid, false),
	}, nil)
	if err != nil {
		return wrapStoreErr("query", store.TableInstallments, err)
	}
	if len(unpaid) > 0 {
		return nil
	}

	parent, err := getByID(ctx, tx, store.TableExpenses, parentID)
	if err != nil {
		return wrapStoreErr("get", store.TableExpenses, err)
	}
	if parent.Bool(store.ColPaid) {
		return nil
	}
	if _, err := tx.Update(ctx, store.TableExpenses, parentID, store.Record{store.ColPaid: true}); err != nil {
		return wrapStoreErr("update", store.TableExpenses, err)
	}
	slog.InfoContext(ctx, "All installments paid, expense marked paid", "expense_id", parentID)
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func missingIDs(want []int64, rows []store.Record) []int64 {
	found := make(map[int64]bool, len(rows))
	for _, r := range rows {
		found[r.Int64(store.ColID)] = true
	}
	var out []int64
	for _, id := range want {
		if !found[id] {
			out = append(out, id)
		}
	}
	return out
}
