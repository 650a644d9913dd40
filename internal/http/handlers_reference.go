package http

import (
	"context"
	"net/http"

	"budgetbook/internal/core"
	applog "budgetbook/internal/log"
)

// refHandlers adapts one reference registry to the list/create/update/delete routes.
type refHandlers struct {
	kind   core.RefKind
	list   func(ctx context.Context, inUse map[int64]bool) (any, error)
	create func(ctx context.Context, p *RequestBodyParser) (any, error)
	update func(ctx context.Context, id int64, p *RequestBodyParser) (any, error)
	delete func(ctx context.Context, id int64) error
}

func (s *Server) refRoutes(mux *http.ServeMux, base string, h refHandlers) {
	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		inUse, err := s.deps.Refs.Guard().InUse(r.Context(), h.kind)
		if err != nil {
			s.respondError(w, r, applog.OpList, err)
			return
		}
		items, err := h.list(r.Context(), inUse)
		if err != nil {
			s.respondError(w, r, applog.OpList, err)
			return
		}
		NewResponse().JSON(items).Write(w)
	})

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.parseBody(w, r)
		if !ok {
			return
		}
		item, err := h.create(r.Context(), p)
		if err != nil {
			s.respondError(w, r, applog.OpCreate, err)
			return
		}
		NewResponse().Status(http.StatusCreated).JSON(item).Write(w)
	})

	mux.HandleFunc("PUT "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.respondError(w, r, applog.OpUpdate, err)
			return
		}
		p, ok := s.parseBody(w, r)
		if !ok {
			return
		}
		item, err := h.update(r.Context(), id, p)
		if err != nil {
			s.respondError(w, r, applog.OpUpdate, err)
			return
		}
		NewResponse().JSON(item).Write(w)
	})

	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.respondError(w, r, applog.OpDelete, err)
			return
		}
		if err := h.delete(r.Context(), id); err != nil {
			s.respondError(w, r, applog.OpDelete, err)
			return
		}
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Reference deleted",
			"kind", string(h.kind),
			"id", id,
			applog.FieldOperation, applog.OpDelete)
		NewResponse().Status(http.StatusNoContent).Write(w)
	})
}

func categoryHandlers(s *Server) refHandlers {
	return refHandlers{
		kind: core.RefCategory,
		list: func(ctx context.Context, inUse map[int64]bool) (any, error) {
			cats, err := s.deps.Refs.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]refView, 0, len(cats))
			for _, c := range cats {
				out = append(out, refView{ID: c.ID, Description: c.Description, InUse: inUse[c.ID]})
			}
			return out, nil
		},
		create: func(ctx context.Context, p *RequestBodyParser) (any, error) {
			c, err := s.deps.Refs.CreateCategory(ctx, core.Category{Description: p.Get("description")})
			return refView{ID: c.ID, Description: c.Description}, err
		},
		update: func(ctx context.Context, id int64, p *RequestBodyParser) (any, error) {
			c, err := s.deps.Refs.UpdateCategory(ctx, id, core.Category{Description: p.Get("description")})
			return refView{ID: c.ID, Description: c.Description}, err
		},
		delete: s.deps.Refs.DeleteCategory,
	}
}

func responsibleHandlers(s *Server) refHandlers {
	return refHandlers{
		kind: core.RefResponsible,
		list: func(ctx context.Context, inUse map[int64]bool) (any, error) {
			people, err := s.deps.Refs.ListResponsibles(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]refView, 0, len(people))
			for _, p := range people {
				out = append(out, refView{ID: p.ID, Description: p.Description, InUse: inUse[p.ID]})
			}
			return out, nil
		},
		create: func(ctx context.Context, p *RequestBodyParser) (any, error) {
			rp, err := s.deps.Refs.CreateResponsible(ctx, core.Responsible{Description: p.Get("description")})
			return refView{ID: rp.ID, Description: rp.Description}, err
		},
		update: func(ctx context.Context, id int64, p *RequestBodyParser) (any, error) {
			rp, err := s.deps.Refs.UpdateResponsible(ctx, id, core.Responsible{Description: p.Get("description")})
			return refView{ID: rp.ID, Description: rp.Description}, err
		},
		delete: s.deps.Refs.DeleteResponsible,
	}
}

func paymentMethodHandlers(s *Server) refHandlers {
	return refHandlers{
		kind: core.RefPaymentMethod,
		list: func(ctx context.Context, inUse map[int64]bool) (any, error) {
			methods, err := s.deps.Refs.ListPaymentMethods(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]paymentMethodView, 0, len(methods))
			for _, m := range methods {
				out = append(out, newPaymentMethodView(m, inUse[m.ID]))
			}
			return out, nil
		},
		create: func(ctx context.Context, p *RequestBodyParser) (any, error) {
			pm, err := parsePaymentMethod(p)
			if err != nil {
				return nil, err
			}
			pm, err = s.deps.Refs.CreatePaymentMethod(ctx, pm)
			return newPaymentMethodView(pm, false), err
		},
		update: func(ctx context.Context, id int64, p *RequestBodyParser) (any, error) {
			pm, err := parsePaymentMethod(p)
			if err != nil {
				return nil, err
			}
			pm, err = s.deps.Refs.UpdatePaymentMethod(ctx, id, pm)
			return newPaymentMethodView(pm, false), err
		},
		delete: s.deps.Refs.DeletePaymentMethod,
	}
}
