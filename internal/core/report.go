package core

// GroupBy selects the dimension of a grouped summary.
type GroupBy string

const (
	GroupNone          GroupBy = "none"
	GroupCategory      GroupBy = "category"
	GroupPaymentMethod GroupBy = "payment_method"
	GroupResponsible   GroupBy = "responsible"
)

// DateField selects which date a summary filters and orders on.
type DateField string

const (
	FieldPurchaseDate DateField = "purchase_date"
	FieldDueDate      DateField = "due_date"
)

// PaidFilter restricts reports by payment status.
type PaidFilter string

const (
	PaidAny    PaidFilter = "all"
	PaidOnly   PaidFilter = "paid"
	UnpaidOnly PaidFilter = "unpaid"
)

// Labels used when a summary row has no resolvable group key.
const (
	LabelAllExpenses     = "All expenses"
	LabelNoCategory      = "No category"
	LabelNoPaymentMethod = "No payment method"
	LabelNoResponsible   = "No responsible"
)

func (g GroupBy) Valid() bool {
	switch g {
	case GroupNone, GroupCategory, GroupPaymentMethod, GroupResponsible:
		return true
	}
	return false
}

func (f DateField) Valid() bool {
	return f == FieldPurchaseDate || f == FieldDueDate
}

func (p PaidFilter) Valid() bool {
	return p == PaidAny || p == PaidOnly || p == UnpaidOnly
}

// Matches reports whether a record with the given paid flag passes the filter.
func (p PaidFilter) Matches(paid bool) bool {
	switch p {
	case PaidOnly:
		return paid
	case UnpaidOnly:
		return !paid
	default:
		return true
	}
}

// PaymentMethodBalance is one group of the open-balance view.
type PaymentMethodBalance struct {
	PaymentMethodID int64
	Description     string
	Total           Money
	Items           int
}

// OpenBalance is the unpaid amount grouped by payment method.
type OpenBalance struct {
	Groups     []PaymentMethodBalance
	GrandTotal Money
}

// LedgerFilter holds independent optional predicates; nil or zero means no constraint.
type LedgerFilter struct {
	PaymentMethodID  *int64
	ResponsibleID    *int64
	Paid             *bool
	PurchaseDateFrom Date
	PurchaseDateTo   Date
	DueDateFrom      Date
	DueDateTo        Date
}

// LedgerEntry is an expense with its reference descriptions resolved.
type LedgerEntry struct {
	Expense
	CategoryName      string
	ResponsibleName   string
	PaymentMethodName string
}

// Ledger is the filtered list of expenses ordered by purchase date descending.
type Ledger struct {
	Entries    []LedgerEntry
	GrandTotal Money
}

// SummaryFilter configures the grouped summary.
type SummaryFilter struct {
	Paid      PaidFilter // defaults to UnpaidOnly
	DateField DateField  // defaults to FieldDueDate
	From      Date
	To        Date
	GroupBy   GroupBy // defaults to GroupNone
}

// SummaryRow is one line of the summary: a single-installment expense, or one
// installment of a multi-installment expense.
type SummaryRow struct {
	ExpenseID         int64
	InstallmentID     int64 // 0 for single-installment expenses
	InstallmentNumber int
	InstallmentCount  int
	Description       string
	Amount            Money
	Paid              bool
	PurchaseDate      Date
	DueDate           Date
	Category          string
	Responsible       string
	PaymentMethod     string
}

// SummaryGroup is one partition of the summary with its subtotal.
type SummaryGroup struct {
	Key      string
	Rows     []SummaryRow
	Subtotal Money
}

// Summary is the grouped view plus a grand total across all filtered rows.
type Summary struct {
	Filter     SummaryFilter
	Groups     []SummaryGroup
	GrandTotal Money
}
