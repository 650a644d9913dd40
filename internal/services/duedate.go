package services

import "budgetbook/internal/core"

// DueDate assigns the due date of a single-installment expense. With no cutoff date
// configured the due date stays unset; otherwise the cutoff date itself is the due
// date, whatever the purchase date. Payment-method closing and due days are not used.
func DueDate(_ core.Date, cfg core.CutoffConfig) core.Date {
	return cfg.CutoffDate
}
