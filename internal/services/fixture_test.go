package services

import (
	"context"
	"testing"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
)

type fixture struct {
	store    store.Store
	expenses *ExpenseService
	refs     *ReferenceService
	config   *ConfigService
	reports  *ReportService

	category      int64
	responsible   int64
	paymentMethod int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memory.New())
}

func newFixtureWith(t *testing.T, st store.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    st,
		expenses: NewExpenseService(st, MonthlySchedule),
		refs:     NewReferenceService(st),
		config:   NewConfigService(st),
		reports:  NewReportService(st),
	}

	cat, err := f.refs.CreateCategory(ctx, core.Category{Description: "Home"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	resp, err := f.refs.CreateResponsible(ctx, core.Responsible{Description: "Ann"})
	if err != nil {
		t.Fatalf("create responsible: %v", err)
	}
	pm, err := f.refs.CreatePaymentMethod(ctx, core.PaymentMethod{Description: "Visa", Active: true, Kind: core.KindCard})
	if err != nil {
		t.Fatalf("create payment method: %v", err)
	}
	f.category, f.responsible, f.paymentMethod = cat.ID, resp.ID, pm.ID
	return f
}

func (f *fixture) input(desc string, cents int64, n int, purchase core.Date) core.ExpenseInput {
	return core.ExpenseInput{
		Description:      desc,
		Amount:           core.Money{Cents: cents},
		CategoryID:       f.category,
		ResponsibleID:    f.responsible,
		PaymentMethodID:  f.paymentMethod,
		PurchaseDate:     purchase,
		InstallmentCount: n,
		UserID:           "user-1",
	}
}

func (f *fixture) mustCreate(t *testing.T, in core.ExpenseInput) core.Expense {
	t.Helper()
	e, err := f.expenses.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create expense %q: %v", in.Description, err)
	}
	return e
}

func (f *fixture) count(t *testing.T, table store.Table) int {
	t.Helper()
	rows, err := f.store.Query(context.Background(), table, nil, nil)
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	return len(rows)
}
