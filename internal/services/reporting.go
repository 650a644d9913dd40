package services

import (
	"cmp"
	"context"
	"slices"

	"budgetbook/internal/core"
	"budgetbook/internal/store"

	"golang.org/x/sync/errgroup"
)

// ReportService computes the read-only report shapes. Every call re-fetches what it
// needs; totals are sums over the filtered rows.
type ReportService struct {
	store store.Store
}

func NewReportService(s store.Store) *ReportService {
	return &ReportService{store: s}
}

// labels maps reference ids to descriptions.
type labels struct {
	categories     map[int64]string
	responsibles   map[int64]string
	paymentMethods map[int64]string
}

// queryAll runs the loaders concurrently and returns the first error.
func (r *ReportService) queryAll(ctx context.Context, qs ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range qs {
		g.Go(func() error { return q(gctx) })
	}
	return g.Wait()
}

func (r *ReportService) loadInto(table store.Table, filters []store.Filter, order []store.Order, dst *[]store.Record) func(context.Context) error {
	return func(ctx context.Context) error {
		rows, err := r.store.Query(ctx, table, filters, order)
		if err != nil {
			return wrapStoreErr("query", table, err)
		}
		*dst = rows
		return nil
	}
}

func (r *ReportService) loadLabels(dst *labels) []func(context.Context) error {
	var cats, resps, pms []store.Record
	byID := func(rows []store.Record) map[int64]string {
		m := make(map[int64]string, len(rows))
		for _, row := range rows {
			m[row.Int64(store.ColID)] = row.Text(store.ColDescription)
		}
		return m
	}
	return []func(context.Context) error{
		func(ctx context.Context) error {
			if err := r.loadInto(store.TableCategories, nil, nil, &cats)(ctx); err != nil {
				return err
			}
			dst.categories = byID(cats)
			return nil
		},
		func(ctx context.Context) error {
			if err := r.loadInto(store.TableResponsibles, nil, nil, &resps)(ctx); err != nil {
				return err
			}
			dst.responsibles = byID(resps)
			return nil
		},
		func(ctx context.Context) error {
			if err := r.loadInto(store.TablePaymentMethods, nil, nil, &pms)(ctx); err != nil {
				return err
			}
			dst.paymentMethods = byID(pms)
			return nil
		},
	}
}

// OpenBalance sums everything still owed, grouped by payment method. An unpaid
// single-installment expense contributes its amount; an unpaid multi-installment
// expense contributes its unpaid installments, or its whole amount when it has no
// installment rows. Expenses marked paid contribute nothing. Groups are ordered by payment-method description.
func (r *ReportService) OpenBalance(ctx context.Context) (core.OpenBalance, error) {
	var expenses, installments []store.Record
	var lbl labels
	qs := append(r.loadLabels(&lbl),
		r.loadInto(store.TableExpenses, []store.Filter{store.Eq(store.ColPaid, false)}, nil, &expenses),
		r.loadInto(store.TableInstallments, nil, nil, &installments),
	)
	if err := r.queryAll(ctx, qs...); err != nil {
		return core.OpenBalance{}, err
	}

	byExpense := make(map[int64][]core.Installment)
	for _, row := range installments {
		in := installmentFromRecord(row)
		byExpense[in.ExpenseID] = append(byExpense[in.ExpenseID], in)
	}

	groups := make(map[int64]*core.PaymentMethodBalance)
	for _, row := range expenses {
		e := expenseFromRecord(row)
		var amount core.Money
		items := 0
		insts := byExpense[e.ID]
		if e.InstallmentCount <= 1 || len(insts) == 0 {
			amount, items = e.Amount, 1
		} else {
			for _, in := range insts {
				if in.Paid {
					continue
				}
				amount = amount.Add(in.Amount)
				items++
			}
		}
		if items == 0 {
			continue
		}

		g, ok := groups[e.PaymentMethodID]
		if !ok {
			desc, found := lbl.paymentMethods[e.PaymentMethodID]
			if !found {
				desc = core.LabelNoPaymentMethod
			}
			g = &core.PaymentMethodBalance{PaymentMethodID: e.PaymentMethodID, Description: desc}
			groups[e.PaymentMethodID] = g
		}
		g.Total = g.Total.Add(amount)
		g.Items += items
	}

	var out core.OpenBalance
	for _, g := range groups {
		out.Groups = append(out.Groups, *g)
		out.GrandTotal = out.GrandTotal.Add(g.Total)
	}
	slices.SortFunc(out.Groups, func(a, b core.PaymentMethodBalance) int {
		if c := cmp.Compare(a.Description, b.Description); c != 0 {
			return c
		}
		return cmp.Compare(a.PaymentMethodID, b.PaymentMethodID)
	})
	return out, nil
}

// Ledger lists the expenses matching every set predicate of f, newest purchase first.
func (r *ReportService) Ledger(ctx context.Context, f core.LedgerFilter) (core.Ledger, error) {
	var filters []store.Filter
	if f.PaymentMethodID != nil {
		filters = append(filters, store.Eq(store.ColPaymentMethodID, *f.PaymentMethodID))
	}
	if f.ResponsibleID != nil {
		filters = append(filters, store.Eq(store.ColResponsibleID, *f.ResponsibleID))
	}
	if f.Paid != nil {
		filters = append(filters, store.Eq(store.ColPaid, *f.Paid))
	}
	filters = appendRange(filters, store.ColPurchaseDate, f.PurchaseDateFrom, f.PurchaseDateTo)
	filters = appendRange(filters, store.ColDueDate, f.DueDateFrom, f.DueDateTo)

	var expenses []store.Record
	var lbl labels
	qs := append(r.loadLabels(&lbl),
		r.loadInto(store.TableExpenses, filters, []store.Order{store.Desc(store.ColPurchaseDate)}, &expenses))
	if err := r.queryAll(ctx, qs...); err != nil {
		return core.Ledger{}, err
	}

	out := core.Ledger{Entries: make([]core.LedgerEntry, 0, len(expenses))}
	for _, row := range expenses {
		e := expenseFromRecord(row)
		out.Entries = append(out.Entries, core.LedgerEntry{
			Expense:           e,
			CategoryName:      lbl.categories[e.CategoryID],
			ResponsibleName:   lbl.responsibles[e.ResponsibleID],
			PaymentMethodName: lbl.paymentMethods[e.PaymentMethodID],
		})
		out.GrandTotal = out.GrandTotal.Add(e.Amount)
	}
	return out, nil
}

func appendRange(filters []store.Filter, col string, from, to core.Date) []store.Filter {
	if !from.IsZero() {
		filters = append(filters, store.Gte(col, from.Time))
	}
	if !to.IsZero() {
		filters = append(filters, store.Lte(col, to.Time))
	}
	return filters
}

// normalizeSummaryFilter applies defaults: unpaid rows, due date, no grouping.
func normalizeSummaryFilter(f core.SummaryFilter) (core.SummaryFilter, error) {
	if f.Paid == "" {
		f.Paid = core.UnpaidOnly
	}
	if f.DateField == "" {
		f.DateField = core.FieldDueDate
	}
	if f.GroupBy == "" {
		f.GroupBy = core.GroupNone
	}
	switch {
	case !f.Paid.Valid():
		return f, &core.ValidationError{Field: "paid", Err: core.ErrInvalidFilter}
	case !f.DateField.Valid():
		return f, &core.ValidationError{Field: "date_field", Err: core.ErrInvalidFilter}
	case !f.GroupBy.Valid():
		return f, &core.ValidationError{Field: "group_by", Err: core.ErrInvalidFilter}
	}
	return f, nil
}

// Summary filters the summary rows by paid status and date range, then partitions
// them by f.GroupBy. A single-installment expense is one row; a multi-installment
// expense contributes one row per installment. Groups are ordered by key and rows
// by the selected date.
func (r *ReportService) Summary(ctx context.Context, f core.SummaryFilter) (core.Summary, error) {
	f, err := normalizeSummaryFilter(f)
	if err != nil {
		return core.Summary{}, err
	}

	var expenses, installments []store.Record
	var lbl labels
	qs := append(r.loadLabels(&lbl),
		r.loadInto(store.TableExpenses, nil, nil, &expenses),
		r.loadInto(store.TableInstallments, nil, []store.Order{store.Asc(store.ColNumber)}, &installments),
	)
	if err := r.queryAll(ctx, qs...); err != nil {
		return core.Summary{}, err
	}

	rows := summaryRows(expenses, installments, lbl)
	rows = slices.DeleteFunc(rows, func(row core.SummaryRow) bool {
		if !f.Paid.Matches(row.Paid) {
			return true
		}
		d := rowDate(row, f.DateField)
		if !f.From.IsZero() && (d.IsZero() || d.Before(f.From.Time)) {
			return true
		}
		if !f.To.IsZero() && (d.IsZero() || d.After(f.To.Time)) {
			return true
		}
		return false
	})
	slices.SortStableFunc(rows, func(a, b core.SummaryRow) int {
		if c := rowDate(a, f.DateField).Compare(rowDate(b, f.DateField).Time); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ExpenseID, b.ExpenseID); c != 0 {
			return c
		}
		return cmp.Compare(a.InstallmentNumber, b.InstallmentNumber)
	})

	out := core.Summary{Filter: f}
	byKey := make(map[string]*core.SummaryGroup)
	var keys []string
	for _, row := range rows {
		key := groupKey(row, f.GroupBy)
		g, ok := byKey[key]
		if !ok {
			g = &core.SummaryGroup{Key: key}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.Rows = append(g.Rows, row)
		g.Subtotal = g.Subtotal.Add(row.Amount)
		out.GrandTotal = out.GrandTotal.Add(row.Amount)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out.Groups = append(out.Groups, *byKey[k])
	}
	return out, nil
}

// summaryRows expands expenses into report rows. An installment row counts as paid
// when it or its parent is paid, the same rule OpenBalance applies.
func summaryRows(expenses, installments []store.Record, lbl labels) []core.SummaryRow {
	byExpense := make(map[int64][]core.Installment)
	for _, row := range installments {
		in := installmentFromRecord(row)
		byExpense[in.ExpenseID] = append(byExpense[in.ExpenseID], in)
	}

	var out []core.SummaryRow
	for _, row := range expenses {
		e := expenseFromRecord(row)
		base := core.SummaryRow{
			ExpenseID:        e.ID,
			InstallmentCount: e.InstallmentCount,
			Description:      e.Description,
			Amount:           e.Amount,
			Paid:             e.Paid,
			PurchaseDate:     e.PurchaseDate,
			DueDate:          e.DueDate,
			Category:         lbl.categories[e.CategoryID],
			Responsible:      lbl.responsibles[e.ResponsibleID],
			PaymentMethod:    lbl.paymentMethods[e.PaymentMethodID],
		}
		insts := byExpense[e.ID]
		if e.InstallmentCount <= 1 || len(insts) == 0 {
			base.InstallmentNumber = 1
			out = append(out, base)
			continue
		}
		for _, in := range insts {
			r := base
			r.InstallmentID = in.ID
			r.InstallmentNumber = in.Number
			r.Amount = in.Amount
			r.Paid = e.Paid || in.Paid
			r.DueDate = in.DueDate
			out = append(out, r)
		}
	}
	return out
}

func rowDate(row core.SummaryRow, field core.DateField) core.Date {
	if field == core.FieldPurchaseDate {
		return row.PurchaseDate
	}
	return row.DueDate
}

func groupKey(row core.SummaryRow, by core.GroupBy) string {
	var key, fallback string
	switch by {
	case core.GroupCategory:
		key, fallback = row.Category, core.LabelNoCategory
	case core.GroupPaymentMethod:
		key, fallback = row.PaymentMethod, core.LabelNoPaymentMethod
	case core.GroupResponsible:
		key, fallback = row.Responsible, core.LabelNoResponsible
	default:
		return core.LabelAllExpenses
	}
	if key == "" {
		return fallback
	}
	return key
}
