package core

import (
	"errors"
	"strings"
	"time"
)

const (
	OriginManual Origin = "manual"
	OriginSystem Origin = "system"
)

const (
	KindCash            PaymentKind = "cash"
	KindCard            PaymentKind = "card"
	KindTransfer        PaymentKind = "transfer"
	KindInstantTransfer PaymentKind = "instant_transfer"
)

// CutoffConfigID is the fixed identifier of the singleton cutoff configuration.
const CutoffConfigID int64 = 1

// MaxDescriptionLength bounds every free-text description.
const MaxDescriptionLength = 200

type (
	Origin      string
	PaymentKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID               int64
		Description      string
		Amount           Money
		CategoryID       int64
		ResponsibleID    int64
		PaymentMethodID  int64
		Paid             bool
		PurchaseDate     Date
		DueDate          Date // zero when unset; not authoritative when InstallmentCount > 1
		InstallmentCount int
		Origin           Origin
		UserID           string
		Installments     []Installment // loaded from the installments index, ordered by Number
	}

	Installment struct {
		ID        int64
		ExpenseID int64 // back-reference for lookup only
		Number    int   // 1..N
		Amount    Money
		DueDate   Date
		Paid      bool
	}

	Category struct {
		ID          int64
		Description string
	}

	Responsible struct {
		ID          int64
		Description string
	}

	PaymentMethod struct {
		ID          int64
		Description string
		Active      bool
		ClosingDay  int // 0 when unset
		DueDay      int // 0 when unset
		Kind        PaymentKind
	}

	CutoffConfig struct {
		ID         int64
		CutoffDate Date // zero when unset
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidInstallments = errors.New("installment count must be an integer >= 1")
	ErrMissingDate         = errors.New("date cannot be zero")
	ErrMissingReference    = errors.New("reference is required")
	ErrInvalidKind         = errors.New("invalid payment kind")
	ErrInvalidDayOfMonth   = errors.New("day of month must be between 1 and 31")
	ErrInvalidOrigin       = errors.New("invalid origin")
	ErrInvalidFilter       = errors.New("invalid report filter")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is zero (optional dates are stored as the zero value)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// AddMonths moves the date by n months, clamping the day to the end of the target month.
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year(), d.Time.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (o Origin) Validate() error {
	switch o {
	case OriginManual, OriginSystem:
		return nil
	default:
		return ErrInvalidOrigin
	}
}

func (k PaymentKind) Validate() error {
	switch k {
	case KindCash, KindCard, KindTransfer, KindInstantTransfer:
		return nil
	default:
		return ErrInvalidKind
	}
}

// ValidateDescription trims s and checks it is non-empty and not too long.
func ValidateDescription(s string) error {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if err := ValidateDescription(c.Description); err != nil {
		return &ValidationError{Field: "description", Err: err}
	}
	return nil
}

func (r Responsible) Validate() error {
	if err := ValidateDescription(r.Description); err != nil {
		return &ValidationError{Field: "description", Err: err}
	}
	return nil
}

func (p PaymentMethod) Validate() error {
	if err := ValidateDescription(p.Description); err != nil {
		return &ValidationError{Field: "description", Err: err}
	}
	if p.ClosingDay < 0 || p.ClosingDay > 31 {
		return &ValidationError{Field: "closing_day", Err: ErrInvalidDayOfMonth}
	}
	if p.DueDay < 0 || p.DueDay > 31 {
		return &ValidationError{Field: "due_day", Err: ErrInvalidDayOfMonth}
	}
	if err := p.Kind.Validate(); err != nil {
		return &ValidationError{Field: "kind", Err: err}
	}
	return nil
}

// ExpenseInput is the caller-supplied payload for creating or updating an expense.
type ExpenseInput struct {
	Description      string
	Amount           Money
	CategoryID       int64
	ResponsibleID    int64
	PaymentMethodID  int64
	Paid             bool
	PurchaseDate     Date
	InstallmentCount int
	Origin           Origin // defaults to OriginManual
	UserID           string
}

// Validate checks the locally verifiable fields and reports the first failing one.
// Reference resolution happens against the store and is not part of this check.
func (in ExpenseInput) Validate() error {
	if err := ValidateDescription(in.Description); err != nil {
		return &ValidationError{Field: "description", Err: err}
	}
	if err := in.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if in.InstallmentCount < 1 {
		return &ValidationError{Field: "installment_count", Err: ErrInvalidInstallments}
	}
	if in.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Err: ErrMissingReference}
	}
	if in.ResponsibleID <= 0 {
		return &ValidationError{Field: "responsible_id", Err: ErrMissingReference}
	}
	if in.PaymentMethodID <= 0 {
		return &ValidationError{Field: "payment_method_id", Err: ErrMissingReference}
	}
	if err := in.PurchaseDate.Validate(); err != nil {
		return &ValidationError{Field: "purchase_date", Err: err}
	}
	if in.Origin != "" {
		if err := in.Origin.Validate(); err != nil {
			return &ValidationError{Field: "origin", Err: err}
		}
	}
	return nil
}

// TotalInstallments sums the installment amounts.
func (e Expense) TotalInstallments() Money {
	var total int64
	for _, in := range e.Installments {
		total += in.Amount.Cents
	}
	return Money{Cents: total}
}

// CutoffExpired reports whether now falls after the configured cutoff date.
func (c CutoffConfig) CutoffExpired(now time.Time) bool {
	if c.CutoffDate.IsZero() {
		return false
	}
	return DateOf(now).After(c.CutoffDate.Time)
}
