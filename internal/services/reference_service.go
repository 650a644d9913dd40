package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// refCatalog describes how one reference-data kind is stored.
type refCatalog[T any] struct {
	kind     core.RefKind
	table    store.Table
	validate func(T) error
	encode   func(T) store.Record
	decode   func(store.Record) T
}

var (
	categories = refCatalog[core.Category]{
		kind:     core.RefCategory,
		table:    store.TableCategories,
		validate: core.Category.Validate,
		encode: func(c core.Category) store.Record {
			return store.Record{store.ColDescription: strings.TrimSpace(c.Description)}
		},
		decode: categoryFromRecord,
	}
	responsibles = refCatalog[core.Responsible]{
		kind:     core.RefResponsible,
		table:    store.TableResponsibles,
		validate: core.Responsible.Validate,
		encode: func(r core.Responsible) store.Record {
			return store.Record{store.ColDescription: strings.TrimSpace(r.Description)}
		},
		decode: responsibleFromRecord,
	}
	paymentMethods = refCatalog[core.PaymentMethod]{
		kind:     core.RefPaymentMethod,
		table:    store.TablePaymentMethods,
		validate: core.PaymentMethod.Validate,
		encode: func(p core.PaymentMethod) store.Record {
			p.Description = strings.TrimSpace(p.Description)
			return paymentMethodToRecord(p)
		},
		decode: paymentMethodFromRecord,
	}
)

// refColumn is the expenses column that points at each reference kind.
var refColumn = map[core.RefKind]string{
	core.RefCategory:      store.ColCategoryID,
	core.RefResponsible:   store.ColResponsibleID,
	core.RefPaymentMethod: store.ColPaymentMethodID,
}

// Guard refuses to delete reference data still referenced by an expense.
type Guard struct {
	store store.Store
}

func NewGuard(s store.Store) *Guard {
	return &Guard{store: s}
}

// Check returns an *InUseError when any expense references id of the given kind.
func (g *Guard) Check(ctx context.Context, kind core.RefKind, id int64) error {
	return g.check(ctx, g.store, kind, id)
}

func (g *Guard) check(ctx context.Context, st store.Store, kind core.RefKind, id int64) error {
	rows, err := st.Query(ctx, store.TableExpenses, []store.Filter{store.Eq(refColumn[kind], id)}, nil)
	if err != nil {
		return wrapStoreErr("query", store.TableExpenses, err)
	}
	if len(rows) > 0 {
		return &core.InUseError{Kind: kind, ID: id, References: len(rows)}
	}
	return nil
}

// InUse returns the ids of the given kind referenced by at least one expense, so a
// presentation layer can hide delete controls.
func (g *Guard) InUse(ctx context.Context, kind core.RefKind) (map[int64]bool, error) {
	col, ok := refColumn[kind]
	if !ok {
		return nil, &core.ValidationError{Field: "kind", Err: core.ErrInvalidKind}
	}
	rows, err := g.store.Query(ctx, store.TableExpenses, nil, nil)
	if err != nil {
		return nil, wrapStoreErr("query", store.TableExpenses, err)
	}
	out := make(map[int64]bool)
	for _, r := range rows {
		out[r.Int64(col)] = true
	}
	return out, nil
}

// ReferenceService manages the category, responsible and payment-method catalogs.
type ReferenceService struct {
	store store.Store
	guard *Guard
}

func NewReferenceService(s store.Store) *ReferenceService {
	return &ReferenceService{store: s, guard: NewGuard(s)}
}

// Guard exposes the referential integrity guard of the service.
func (s *ReferenceService) Guard() *Guard { return s.guard }

func (s *ReferenceService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return listRefs(ctx, s.store, categories)
}

func (s *ReferenceService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return createRef(ctx, s.store, categories, c)
}

func (s *ReferenceService) UpdateCategory(ctx context.Context, id int64, c core.Category) (core.Category, error) {
	return updateRef(ctx, s.store, categories, id, c)
}

func (s *ReferenceService) DeleteCategory(ctx context.Context, id int64) error {
	return deleteRef(ctx, s.store, s.guard, categories, id)
}

func (s *ReferenceService) ListResponsibles(ctx context.Context) ([]core.Responsible, error) {
	return listRefs(ctx, s.store, responsibles)
}

func (s *ReferenceService) CreateResponsible(ctx context.Context, r core.Responsible) (core.Responsible, error) {
	return createRef(ctx, s.store, responsibles, r)
}

func (s *ReferenceService) UpdateResponsible(ctx context.Context, id int64, r core.Responsible) (core.Responsible, error) {
	return updateRef(ctx, s.store, responsibles, id, r)
}

func (s *ReferenceService) DeleteResponsible(ctx context.Context, id int64) error {
	return deleteRef(ctx, s.store, s.guard, responsibles, id)
}

func (s *ReferenceService) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	return listRefs(ctx, s.store, paymentMethods)
}

// CreatePaymentMethod stores p. An empty kind defaults to card.
func (s *ReferenceService) CreatePaymentMethod(ctx context.Context, p core.PaymentMethod) (core.PaymentMethod, error) {
	if p.Kind == "" {
		p.Kind = core.KindCard
	}
	return createRef(ctx, s.store, paymentMethods, p)
}

func (s *ReferenceService) UpdatePaymentMethod(ctx context.Context, id int64, p core.PaymentMethod) (core.PaymentMethod, error) {
	if p.Kind == "" {
		p.Kind = core.KindCard
	}
	return updateRef(ctx, s.store, paymentMethods, id, p)
}

func (s *ReferenceService) DeletePaymentMethod(ctx context.Context, id int64) error {
	return deleteRef(ctx, s.store, s.guard, paymentMethods, id)
}

func listRefs[T any](ctx context.Context, st store.Store, c refCatalog[T]) ([]T, error) {
	rows, err := st.Query(ctx, c.table, nil, []store.Order{store.Asc(store.ColDescription)})
	if err != nil {
		return nil, wrapStoreErr("query", c.table, err)
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = c.decode(r)
	}
	return out, nil
}

func createRef[T any](ctx context.Context, st store.Store, c refCatalog[T], v T) (T, error) {
	var zero T
	if err := c.validate(v); err != nil {
		return zero, err
	}
	rec, err := st.Insert(ctx, c.table, c.encode(v))
	if err != nil {
		return zero, wrapStoreErr("insert", c.table, err)
	}
	slog.InfoContext(ctx, "Reference entry created", "kind", c.kind, "id", rec.Int64(store.ColID))
	return c.decode(rec), nil
}

func updateRef[T any](ctx context.Context, st store.Store, c refCatalog[T], id int64, v T) (T, error) {
	var zero T
	if err := c.validate(v); err != nil {
		return zero, err
	}
	rec, err := st.Update(ctx, c.table, id, c.encode(v))
	if err != nil {
		return zero, wrapStoreErr("update", c.table, err)
	}
	return c.decode(rec), nil
}

// deleteRef runs the guard check and the delete as one unit.
func deleteRef[T any](ctx context.Context, st store.Store, g *Guard, c refCatalog[T], id int64) error {
	err := store.Atomic(ctx, st, func(tx store.Store) error {
		if err := g.check(ctx, tx, c.kind, id); err != nil {
			return err
		}
		return tx.Delete(ctx, c.table, id)
	})
	if err != nil {
		var inUse *core.InUseError
		if errors.As(err, &inUse) {
			slog.WarnContext(ctx, "Refused to delete referenced entry",
				"kind", c.kind, "id", id, "references", inUse.References)
		}
		return wrapStoreErr("delete", c.table, err)
	}
	slog.InfoContext(ctx, "Reference entry deleted", "kind", c.kind, "id", id)
	return nil
}
