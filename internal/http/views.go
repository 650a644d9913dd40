package http

import (
	"time"

	"budgetbook/internal/core"
)

// moneyView exposes an amount both as exact cents and as a decimal string.
type moneyView struct {
	Cents  int64  `json:"cents"`
	Amount string `json:"amount"`
}

func newMoneyView(m core.Money) moneyView {
	return moneyView{Cents: m.Cents, Amount: m.String()}
}

// dateView renders an optional date; unset dates encode as null.
func dateView(d core.Date) *string {
	if d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

type installmentView struct {
	ID        int64     `json:"id"`
	ExpenseID int64     `json:"expense_id"`
	Number    int       `json:"number"`
	Amount    moneyView `json:"amount"`
	DueDate   *string   `json:"due_date"`
	Paid      bool      `json:"paid"`
}

type expenseView struct {
	ID               int64             `json:"id"`
	Description      string            `json:"description"`
	Amount           moneyView         `json:"amount"`
	CategoryID       int64             `json:"category_id"`
	ResponsibleID    int64             `json:"responsible_id"`
	PaymentMethodID  int64             `json:"payment_method_id"`
	Paid             bool              `json:"paid"`
	PurchaseDate     *string           `json:"purchase_date"`
	DueDate          *string           `json:"due_date"`
	InstallmentCount int               `json:"installment_count"`
	Origin           string            `json:"origin"`
	UserID           string            `json:"user_id,omitempty"`
	Installments     []installmentView `json:"installments"`
}

func newExpenseView(e core.Expense) expenseView {
	v := expenseView{
		ID:               e.ID,
		Description:      e.Description,
		Amount:           newMoneyView(e.Amount),
		CategoryID:       e.CategoryID,
		ResponsibleID:    e.ResponsibleID,
		PaymentMethodID:  e.PaymentMethodID,
		Paid:             e.Paid,
		PurchaseDate:     dateView(e.PurchaseDate),
		DueDate:          dateView(e.DueDate),
		InstallmentCount: e.InstallmentCount,
		Origin:           string(e.Origin),
		UserID:           e.UserID,
		Installments:     make([]installmentView, 0, len(e.Installments)),
	}
	for _, in := range e.Installments {
		v.Installments = append(v.Installments, installmentView{
			ID:        in.ID,
			ExpenseID: in.ExpenseID,
			Number:    in.Number,
			Amount:    newMoneyView(in.Amount),
			DueDate:   dateView(in.DueDate),
			Paid:      in.Paid,
		})
	}
	return v
}

// refView is the shape of categories and responsibles.
type refView struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	InUse       bool   `json:"in_use"`
}

type paymentMethodView struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	ClosingDay  *int   `json:"closing_day"`
	DueDay      *int   `json:"due_day"`
	Kind        string `json:"kind"`
	InUse       bool   `json:"in_use"`
}

func optionalDay(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func newPaymentMethodView(p core.PaymentMethod, inUse bool) paymentMethodView {
	return paymentMethodView{
		ID:          p.ID,
		Description: p.Description,
		Active:      p.Active,
		ClosingDay:  optionalDay(p.ClosingDay),
		DueDay:      optionalDay(p.DueDay),
		Kind:        string(p.Kind),
		InUse:       inUse,
	}
}

type configView struct {
	CutoffDate    *string `json:"cutoff_date"`
	CutoffExpired bool    `json:"cutoff_expired"`
}

func newConfigView(c core.CutoffConfig, now time.Time) configView {
	return configView{
		CutoffDate:    dateView(c.CutoffDate),
		CutoffExpired: c.CutoffExpired(now),
	}
}

type balanceGroupView struct {
	PaymentMethodID int64     `json:"payment_method_id"`
	Description     string    `json:"description"`
	Total           moneyView `json:"total"`
	Items           int       `json:"items"`
}

type openBalanceView struct {
	Groups     []balanceGroupView `json:"groups"`
	GrandTotal moneyView          `json:"grand_total"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`
}

func newOpenBalanceView(ob core.OpenBalance) openBalanceView {
	v := openBalanceView{
		Groups:     make([]balanceGroupView, 0, len(ob.Groups)),
		GrandTotal: newMoneyView(ob.GrandTotal),
	}
	for _, g := range ob.Groups {
		v.Groups = append(v.Groups, balanceGroupView{
			PaymentMethodID: g.PaymentMethodID,
			Description:     g.Description,
			Total:           newMoneyView(g.Total),
			Items:           g.Items,
		})
	}
	return v
}

type ledgerEntryView struct {
	expenseView
	CategoryName      string `json:"category"`
	ResponsibleName   string `json:"responsible"`
	PaymentMethodName string `json:"payment_method"`
}

type ledgerView struct {
	Entries    []ledgerEntryView `json:"entries"`
	GrandTotal moneyView         `json:"grand_total"`
}

func newLedgerView(l core.Ledger) ledgerView {
	v := ledgerView{
		Entries:    make([]ledgerEntryView, 0, len(l.Entries)),
		GrandTotal: newMoneyView(l.GrandTotal),
	}
	for _, e := range l.Entries {
		v.Entries = append(v.Entries, ledgerEntryView{
			expenseView:       newExpenseView(e.Expense),
			CategoryName:      e.CategoryName,
			ResponsibleName:   e.ResponsibleName,
			PaymentMethodName: e.PaymentMethodName,
		})
	}
	return v
}

type summaryRowView struct {
	ExpenseID         int64     `json:"expense_id"`
	InstallmentID     int64     `json:"installment_id,omitempty"`
	InstallmentNumber int       `json:"installment_number,omitempty"`
	InstallmentCount  int       `json:"installment_count"`
	Description       string    `json:"description"`
	Amount            moneyView `json:"amount"`
	Paid              bool      `json:"paid"`
	PurchaseDate      *string   `json:"purchase_date"`
	DueDate           *string   `json:"due_date"`
	Category          string    `json:"category"`
	Responsible       string    `json:"responsible"`
	PaymentMethod     string    `json:"payment_method"`
}

type summaryGroupView struct {
	Key      string           `json:"key"`
	Rows     []summaryRowView `json:"rows"`
	Subtotal moneyView        `json:"subtotal"`
}

type summaryFilterView struct {
	Paid      string  `json:"paid"`
	DateField string  `json:"date_field"`
	From      *string `json:"from"`
	To        *string `json:"to"`
	GroupBy   string  `json:"group_by"`
}

type summaryView struct {
	Filter     summaryFilterView  `json:"filter"`
	Groups     []summaryGroupView `json:"groups"`
	GrandTotal moneyView          `json:"grand_total"`
}

func newSummaryView(s core.Summary) summaryView {
	v := summaryView{
		Filter: summaryFilterView{
			Paid:      string(s.Filter.Paid),
			DateField: string(s.Filter.DateField),
			From:      dateView(s.Filter.From),
			To:        dateView(s.Filter.To),
			GroupBy:   string(s.Filter.GroupBy),
		},
		Groups:     make([]summaryGroupView, 0, len(s.Groups)),
		GrandTotal: newMoneyView(s.GrandTotal),
	}
	for _, g := range s.Groups {
		gv := summaryGroupView{
			Key:      g.Key,
			Rows:     make([]summaryRowView, 0, len(g.Rows)),
			Subtotal: newMoneyView(g.Subtotal),
		}
		for _, r := range g.Rows {
			gv.Rows = append(gv.Rows, summaryRowView{
				ExpenseID:         r.ExpenseID,
				InstallmentID:     r.InstallmentID,
				InstallmentNumber: r.InstallmentNumber,
				InstallmentCount:  r.InstallmentCount,
				Description:       r.Description,
				Amount:            newMoneyView(r.Amount),
				Paid:              r.Paid,
				PurchaseDate:      dateView(r.PurchaseDate),
				DueDate:           dateView(r.DueDate),
				Category:          r.Category,
				Responsible:       r.Responsible,
				PaymentMethod:     r.PaymentMethod,
			})
		}
		v.Groups = append(v.Groups, gv)
	}
	return v
}
