package http

import (
	"net/http"

	applog "budgetbook/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	in, err := parseExpenseInput(p, userIDFrom(r))
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.deps.Expenses.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, r, applog.OpCreate, err)
		return
	}

	s.metrics.expenseSaved()
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseChange(r.Context(), applog.OpCreate, e.ID, e.Description, e.Amount.Cents)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+itoa(e.ID)).
		JSON(newExpenseView(e)).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	e, err := s.deps.Expenses.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(newExpenseView(e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	in, err := parseExpenseInput(p, userIDFrom(r))
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	e, err := s.deps.Expenses.Update(r.Context(), id, in)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	s.metrics.expenseSaved()
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseChange(r.Context(), applog.OpUpdate, e.ID, e.Description, e.Amount.Cents)

	NewResponse().JSON(newExpenseView(e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, applog.OpDelete, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		applog.FieldExpenseID, id,
		applog.FieldOperation, applog.OpDelete)
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleSetExpensePaid sets the paid flag of the expense record only; its
// installments keep their own flags.
func (s *Server) handleSetExpensePaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	paid, err := p.Bool("paid", true)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}

	e, err := s.deps.Expenses.SetPaid(r.Context(), id, paid)
	if err != nil {
		s.respondError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(newExpenseView(e)).Write(w)
}

// handleToggleInstallments marks a set of installments paid or unpaid and
// propagates the result to each parent expense.
func (s *Server) handleToggleInstallments(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	ids, err := p.IDs("ids")
	if err != nil {
		s.respondError(w, r, applog.OpToggle, err)
		return
	}
	if len(ids) == 0 {
		BadRequestError("ids must list at least one installment").Write(w)
		return
	}
	paid, err := p.Bool("paid", true)
	if err != nil {
		s.respondError(w, r, applog.OpToggle, err)
		return
	}

	if err := s.deps.Expenses.TogglePayment(r.Context(), ids, paid); err != nil {
		s.respondError(w, r, applog.OpToggle, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Installments toggled",
		"installments", len(ids),
		"paid", paid,
		applog.FieldOperation, applog.OpToggle)
	NewResponse().JSON(map[string]any{"ids": ids, "paid": paid}).Write(w)
}
