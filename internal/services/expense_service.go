package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// ExpenseService owns expense records and their installment obligations. Every
// mutation runs as one atomic unit against the store.
type ExpenseService struct {
	store      store.Store
	schedule   Schedule
	reconciler *Reconciler
}

// NewExpenseService returns a service generating installment due dates with
// schedule; nil means MonthlySchedule.
func NewExpenseService(s store.Store, schedule Schedule) *ExpenseService {
	if schedule == nil {
		schedule = MonthlySchedule
	}
	return &ExpenseService{
		store:      s,
		schedule:   schedule,
		reconciler: NewReconciler(s),
	}
}

// Create validates in, resolves its references and stores the expense. A
// single-installment expense gets its due date from the cutoff configuration; a
// multi-installment one gets its installments generated in the same unit of work.
func (s *ExpenseService) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	in, err := s.prepare(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}

	var created core.Expense
	err = store.Atomic(ctx, s.store, func(tx store.Store) error {
		if err := resolveRefs(ctx, tx, in); err != nil {
			return err
		}
		exp := expenseFromInput(in)
		if exp.InstallmentCount == 1 {
			cfg, err := loadCutoff(ctx, tx)
			if err != nil {
				return wrapStoreErr("get", store.TableConfig, err)
			}
			exp.DueDate = DueDate(exp.PurchaseDate, cfg)
		}

		rec, err := tx.Insert(ctx, store.TableExpenses, expenseToRecord(exp))
		if err != nil {
			return wrapStoreErr("insert", store.TableExpenses, err)
		}
		exp = expenseFromRecord(rec)

		if exp.InstallmentCount > 1 {
			insts, err := insertInstallments(ctx, tx, exp, s.schedule)
			if err != nil {
				return err
			}
			exp.Installments = insts
		}
		created = exp
		return nil
	})
	if err != nil {
		return core.Expense{}, wrapStoreErr("create", store.TableExpenses, err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", created.ID,
		"amount", created.Amount.String(),
		"installments", created.InstallmentCount,
		"due_date", created.DueDate.String())
	return created, nil
}

// Update replaces the editable fields of expense id. When the amount or the
// installment count changes, installments are deleted and generated again, losing
// their payment status.
func (s *ExpenseService) Update(ctx context.Context, id int64, in core.ExpenseInput) (core.Expense, error) {
	in, err := s.prepare(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}

	var updated core.Expense
	err = store.Atomic(ctx, s.store, func(tx store.Store) error {
		curRec, err := getByID(ctx, tx, store.TableExpenses, id)
		if err != nil {
			return wrapStoreErr("get", store.TableExpenses, err)
		}
		if err := resolveRefs(ctx, tx, in); err != nil {
			return err
		}
		cur := expenseFromRecord(curRec)

		next := expenseFromInput(in)
		next.ID = id
		if next.InstallmentCount == 1 {
			cfg, err := loadCutoff(ctx, tx)
			if err != nil {
				return wrapStoreErr("get", store.TableConfig, err)
			}
			next.DueDate = DueDate(next.PurchaseDate, cfg)
		}

		rec, err := tx.Update(ctx, store.TableExpenses, id, expenseToRecord(next))
		if err != nil {
			return wrapStoreErr("update", store.TableExpenses, err)
		}
		updated = expenseFromRecord(rec)

		regenerate := cur.Amount != next.Amount || cur.InstallmentCount != next.InstallmentCount
		if regenerate {
			if err := deleteInstallments(ctx, tx, id); err != nil {
				return err
			}
			if updated.InstallmentCount > 1 {
				insts, err := insertInstallments(ctx, tx, updated, s.schedule)
				if err != nil {
					return err
				}
				updated.Installments = insts
			}
			slog.InfoContext(ctx, "Installments regenerated",
				"expense_id", id, "installments", updated.InstallmentCount)
			return nil
		}

		updated.Installments, err = loadInstallments(ctx, tx, id)
		return wrapStoreErr("query", store.TableInstallments, err)
	})
	if err != nil {
		return core.Expense{}, wrapStoreErr("update", store.TableExpenses, err)
	}
	return updated, nil
}

// Delete removes expense id together with its installments.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	err := store.Atomic(ctx, s.store, func(tx store.Store) error {
		if _, err := getByID(ctx, tx, store.TableExpenses, id); err != nil {
			return wrapStoreErr("get", store.TableExpenses, err)
		}
		if err := deleteInstallments(ctx, tx, id); err != nil {
			return err
		}
		return wrapStoreErr("delete", store.TableExpenses, tx.Delete(ctx, store.TableExpenses, id))
	})
	if err != nil {
		return wrapStoreErr("delete", store.TableExpenses, err)
	}
	slog.InfoContext(ctx, "Expense deleted", "expense_id", id)
	return nil
}

// SetPaid sets the paid flag of the expense only; installments are left as they are.
func (s *ExpenseService) SetPaid(ctx context.Context, id int64, paid bool) (core.Expense, error) {
	rec, err := s.store.Update(ctx, store.TableExpenses, id, store.Record{store.ColPaid: paid})
	if err != nil {
		return core.Expense{}, wrapStoreErr("update", store.TableExpenses, err)
	}
	return expenseFromRecord(rec), nil
}

// TogglePayment sets the paid flag of installments and propagates to their parents.
func (s *ExpenseService) TogglePayment(ctx context.Context, installmentIDs []int64, paid bool) error {
	return s.reconciler.TogglePayment(ctx, installmentIDs, paid)
}

// Get returns expense id with its installments ordered by number.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	rec, err := getByID(ctx, s.store, store.TableExpenses, id)
	if err != nil {
		return core.Expense{}, wrapStoreErr("get", store.TableExpenses, err)
	}
	exp := expenseFromRecord(rec)
	exp.Installments, err = loadInstallments(ctx, s.store, id)
	if err != nil {
		return core.Expense{}, wrapStoreErr("query", store.TableInstallments, err)
	}
	return exp, nil
}

// prepare validates and normalizes in.
func (s *ExpenseService) prepare(_ context.Context, in core.ExpenseInput) (core.ExpenseInput, error) {
	if err := in.Validate(); err != nil {
		return in, err
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Origin == "" {
		in.Origin = core.OriginManual
	}
	return in, nil
}

// resolveRefs checks every reference of in exists. It runs inside the unit of work
// that writes the expense so a guarded delete cannot remove a reference in between.
func resolveRefs(ctx context.Context, tx store.Store, in core.ExpenseInput) error {
	refs := []struct {
		kind  core.RefKind
		table store.Table
		id    int64
	}{
		{core.RefCategory, store.TableCategories, in.CategoryID},
		{core.RefResponsible, store.TableResponsibles, in.ResponsibleID},
		{core.RefPaymentMethod, store.TablePaymentMethods, in.PaymentMethodID},
	}
	for _, ref := range refs {
		_, err := getByID(ctx, tx, ref.table, ref.id)
		if errors.Is(err, store.ErrNotFound) {
			return &core.ReferenceError{Kind: ref.kind, ID: ref.id}
		}
		if err != nil {
			return wrapStoreErr("get", ref.table, err)
		}
	}
	return nil
}

func expenseFromInput(in core.ExpenseInput) core.Expense {
	return core.Expense{
		Description:      in.Description,
		Amount:           in.Amount,
		CategoryID:       in.CategoryID,
		ResponsibleID:    in.ResponsibleID,
		PaymentMethodID:  in.PaymentMethodID,
		Paid:             in.Paid,
		PurchaseDate:     in.PurchaseDate,
		InstallmentCount: in.InstallmentCount,
		Origin:           in.Origin,
		UserID:           in.UserID,
	}
}

func deleteInstallments(ctx context.Context, tx store.Store, expenseID int64) error {
	insts, err := loadInstallments(ctx, tx, expenseID)
	if err != nil {
		return wrapStoreErr("query", store.TableInstallments, err)
	}
	for _, in := range insts {
		if err := tx.Delete(ctx, store.TableInstallments, in.ID); err != nil {
			return wrapStoreErr("delete", store.TableInstallments, err)
		}
	}
	return nil
}
