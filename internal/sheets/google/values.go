package google

import (
	"fmt"
	"time"

	"budgetbook/internal/core"
)

// balanceValues lays out the open balance as a header, one row per payment method
// and a total row.
func balanceValues(ob core.OpenBalance, at time.Time) [][]any {
	out := [][]any{
		{"Updated", at.Format(time.DateTime)},
		{"Payment method", "Items", "Open amount"},
	}
	for _, g := range ob.Groups {
		out = append(out, []any{g.Description, g.Items, g.Total.Euros()})
	}
	out = append(out, []any{"Total", "", ob.GrandTotal.Euros()})
	return out
}

// summaryValues lays out a summary group by group, each followed by its subtotal.
func summaryValues(s core.Summary, at time.Time) [][]any {
	out := [][]any{
		{"Updated", at.Format(time.DateTime), "Group by", string(s.Filter.GroupBy), "Status", string(s.Filter.Paid)},
		{"Group", "Date", "Description", "Installment", "Amount", "Paid"},
	}
	for _, g := range s.Groups {
		for _, r := range g.Rows {
			date := r.DueDate
			if s.Filter.DateField == core.FieldPurchaseDate {
				date = r.PurchaseDate
			}
			out = append(out, []any{
				g.Key,
				date.String(),
				r.Description,
				installmentLabel(r),
				r.Amount.Euros(),
				yesNo(r.Paid),
			})
		}
		out = append(out, []any{g.Key, "", "Subtotal", "", g.Subtotal.Euros(), ""})
	}
	out = append(out, []any{"Total", "", "", "", s.GrandTotal.Euros(), ""})
	return out
}

func installmentLabel(r core.SummaryRow) string {
	if r.InstallmentCount <= 1 {
		return ""
	}
	return fmt.Sprintf("%d/%d", r.InstallmentNumber, r.InstallmentCount)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
