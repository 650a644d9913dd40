package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
)

type testServer struct {
	srv   *Server
	store store.Store

	category      int64
	responsible   int64
	paymentMethod int64
}

func newTestServer(t testing.TB, mutate func(*Deps)) *testServer {
	t.Helper()
	st := memory.New()
	reports := services.NewReportService(st)
	deps := Deps{
		Store:    st,
		Expenses: services.NewExpenseService(st, services.MonthlySchedule),
		Refs:     services.NewReferenceService(st),
		Config:   services.NewConfigService(st),
		Reports:  reports,
		Now:      func() time.Time { return time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&deps)
	}

	ts := &testServer{srv: NewServer(":0", deps), store: st}
	t.Cleanup(func() { _ = ts.srv.Shutdown(context.Background()) })

	ctx := context.Background()
	cat, err := deps.Refs.CreateCategory(ctx, core.Category{Description: "Home"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	resp, err := deps.Refs.CreateResponsible(ctx, core.Responsible{Description: "Ann"})
	if err != nil {
		t.Fatalf("create responsible: %v", err)
	}
	pm, err := deps.Refs.CreatePaymentMethod(ctx, core.PaymentMethod{Description: "Visa", Active: true, Kind: core.KindCard})
	if err != nil {
		t.Fatalf("create payment method: %v", err)
	}
	ts.category, ts.responsible, ts.paymentMethod = cat.ID, resp.ID, pm.ID
	return ts
}

func (ts *testServer) do(t testing.TB, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		if strings.HasPrefix(strings.TrimSpace(body), "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) expenseJSON(desc, amount string, n int) string {
	b, _ := json.Marshal(map[string]any{
		"description":       desc,
		"amount":            amount,
		"category_id":       ts.category,
		"responsible_id":    ts.responsible,
		"payment_method_id": ts.paymentMethod,
		"purchase_date":     "2024-06-05",
		"installment_count": n,
	})
	return string(b)
}

func decode[T any](t testing.TB, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type errorResp struct {
	Error ErrorBody `json:"error"`
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := ts.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "http_requests_total") {
		t.Fatalf("metrics status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestExpenseLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Laptop", "100.00", 3))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[expenseView](t, rr)
	if rr.Header().Get("Location") != "/api/expenses/"+itoa(created.ID) {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}
	if created.UserID != "user-1" {
		t.Errorf("user id = %q, want user-1", created.UserID)
	}
	if len(created.Installments) != 3 {
		t.Fatalf("installments = %d, want 3", len(created.Installments))
	}
	wantCents := []int64{3334, 3333, 3333}
	wantDue := []string{"2024-06-05", "2024-07-05", "2024-08-05"}
	ids := make([]int64, 0, 3)
	for i, in := range created.Installments {
		if in.Amount.Cents != wantCents[i] {
			t.Errorf("installment %d cents = %d, want %d", i+1, in.Amount.Cents, wantCents[i])
		}
		if in.DueDate == nil || *in.DueDate != wantDue[i] {
			t.Errorf("installment %d due = %v, want %s", i+1, in.DueDate, wantDue[i])
		}
		ids = append(ids, in.ID)
	}

	path := "/api/expenses/" + itoa(created.ID)
	if rr := ts.do(t, http.MethodGet, path, ""); rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	body, _ := json.Marshal(map[string]any{"ids": ids, "paid": true})
	if rr := ts.do(t, http.MethodPost, "/api/installments/paid", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("toggle status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[expenseView](t, ts.do(t, http.MethodGet, path, ""))
	if !got.Paid {
		t.Error("parent should be paid once every installment is paid")
	}

	rr = ts.do(t, http.MethodPut, path, ts.expenseJSON("Laptop", "120.00", 2))
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if upd := decode[expenseView](t, rr); len(upd.Installments) != 2 || upd.Amount.Amount != "120.00" {
		t.Errorf("updated = %+v", upd)
	}

	if rr := ts.do(t, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, path, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestCreateExpenseRejections(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
		wantField string
	}{
		{"malformed json", `{"description":`, http.StatusBadRequest, CodeBadRequest, ""},
		{"bad amount", ts.expenseJSON("x", "abc", 1), http.StatusUnprocessableEntity, CodeValidation, "amount"},
		{"empty description", ts.expenseJSON("  ", "10", 1), http.StatusUnprocessableEntity, CodeValidation, "description"},
		{"empty description and bad amount", ts.expenseJSON("", "abc", 1), http.StatusUnprocessableEntity, CodeValidation, "description"},
		{"zero installments", ts.expenseJSON("x", "10", 0), http.StatusUnprocessableEntity, CodeValidation, "installment_count"},
		{"bad date", strings.Replace(ts.expenseJSON("x", "10", 1), "2024-06-05", "05/06/2024", 1), http.StatusUnprocessableEntity, CodeValidation, "purchase_date"},
		{"unknown category", strings.Replace(ts.expenseJSON("x", "10", 1), `"category_id":`+itoa(ts.category), `"category_id":999`, 1), http.StatusUnprocessableEntity, CodeReference, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/expenses", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			e := decode[errorResp](t, rr).Error
			if e.Code != tt.wantError {
				t.Errorf("code = %q, want %q", e.Code, tt.wantError)
			}
			if e.Field != tt.wantField {
				t.Errorf("field = %q, want %q", e.Field, tt.wantField)
			}
		})
	}

	if n := countRows(t, ts.store, store.TableExpenses); n != 0 {
		t.Errorf("rejected requests stored %d expenses", n)
	}
}

func TestCreateExpenseFormEncoded(t *testing.T) {
	ts := newTestServer(t, nil)

	form := "description=Groceries&amount=12%2C34&category_id=" + itoa(ts.category) +
		"&responsible_id=" + itoa(ts.responsible) +
		"&payment_method_id=" + itoa(ts.paymentMethod) +
		"&purchase_date=2024-06-01"
	rr := ts.do(t, http.MethodPost, "/api/expenses", form)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	e := decode[expenseView](t, rr)
	if e.Amount.Cents != 1234 || e.InstallmentCount != 1 {
		t.Errorf("expense = %+v", e)
	}
}

func TestSetExpensePaid(t *testing.T) {
	ts := newTestServer(t, nil)
	created := decode[expenseView](t, ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Rent", "800", 1)))

	rr := ts.do(t, http.MethodPut, "/api/expenses/"+itoa(created.ID)+"/paid", `{"paid":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !decode[expenseView](t, rr).Paid {
		t.Error("expense not marked paid")
	}

	if rr := ts.do(t, http.MethodPut, "/api/expenses/abc/paid", `{"paid":true}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad id status=%d", rr.Code)
	}
}

func TestToggleInstallmentsUnknownID(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown id", `{"ids":[4242],"paid":true}`, http.StatusNotFound},
		{"empty list", `{"ids":[],"paid":true}`, http.StatusBadRequest},
		{"bad id", `{"ids":["x"],"paid":true}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := ts.do(t, http.MethodPost, "/api/installments/paid", tt.body); rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestReferenceRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/api/payment-methods", `{"description":"  Cash ","kind":"cash"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	pm := decode[paymentMethodView](t, rr)
	if !pm.Active || pm.Description != "Cash" || pm.ClosingDay != nil {
		t.Errorf("payment method = %+v", pm)
	}

	if rr := ts.do(t, http.MethodPost, "/api/payment-methods", `{"description":"X","kind":"cheque"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid kind status=%d", rr.Code)
	}

	ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Rent", "800", 1))

	cats := decode[[]refView](t, ts.do(t, http.MethodGet, "/api/categories", ""))
	if len(cats) != 1 || !cats[0].InUse {
		t.Fatalf("categories = %+v", cats)
	}

	rr = ts.do(t, http.MethodDelete, "/api/categories/"+itoa(ts.category), "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("delete in-use status=%d body=%s", rr.Code, rr.Body.String())
	}
	if e := decode[errorResp](t, rr).Error; e.Code != CodeInUse || e.References != 1 {
		t.Errorf("error = %+v", e)
	}

	rr = ts.do(t, http.MethodPut, "/api/responsibles/"+itoa(ts.responsible), `{"description":"Bob"}`)
	if rr.Code != http.StatusOK || decode[refView](t, rr).Description != "Bob" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	if rr := ts.do(t, http.MethodDelete, "/api/payment-methods/"+itoa(pm.ID), ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete unused status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodPut, "/api/categories/999", `{"description":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("update missing status=%d", rr.Code)
	}
}

func TestConfigRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	got := decode[configView](t, ts.do(t, http.MethodGet, "/api/config", ""))
	if got.CutoffDate != nil || got.CutoffExpired {
		t.Fatalf("initial config = %+v", got)
	}

	rr := ts.do(t, http.MethodPut, "/api/config", `{"cutoff_date":"2024-06-10"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	got = decode[configView](t, rr)
	if got.CutoffDate == nil || *got.CutoffDate != "2024-06-10" || !got.CutoffExpired {
		t.Errorf("saved config = %+v", got)
	}

	e := decode[expenseView](t, ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Gas", "45.50", 1)))
	if e.DueDate == nil || *e.DueDate != "2024-06-10" {
		t.Errorf("due date = %v, want cutoff", e.DueDate)
	}

	if rr := ts.do(t, http.MethodPut, "/api/config", `{"cutoff_date":"June"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date status=%d", rr.Code)
	}

	got = decode[configView](t, ts.do(t, http.MethodPut, "/api/config", `{"cutoff_date":null}`))
	if got.CutoffDate != nil {
		t.Errorf("cleared config = %+v", got)
	}
}

func TestReportRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Laptop", "100.00", 3))
	ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Rent", "800", 1))

	ob := decode[openBalanceView](t, ts.do(t, http.MethodGet, "/api/reports/open-balance", ""))
	if ob.GrandTotal.Cents != 90000 || len(ob.Groups) != 1 || ob.Groups[0].Items != 4 {
		t.Errorf("open balance = %+v", ob)
	}

	ledger := decode[ledgerView](t, ts.do(t, http.MethodGet, "/api/reports/ledger?paid=false&payment_method_id="+itoa(ts.paymentMethod), ""))
	if len(ledger.Entries) != 2 || ledger.Entries[0].CategoryName != "Home" {
		t.Errorf("ledger = %+v", ledger)
	}

	sum := decode[summaryView](t, ts.do(t, http.MethodGet, "/api/reports/summary?group_by=category&date_field=purchase_date", ""))
	if len(sum.Groups) != 1 || sum.Groups[0].Key != "Home" || len(sum.Groups[0].Rows) != 4 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Filter.Paid != string(core.UnpaidOnly) {
		t.Errorf("default paid filter = %q", sum.Filter.Paid)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/reports/summary?group_by=weekday", http.StatusUnprocessableEntity},
		{"/api/reports/summary?from=yesterday", http.StatusUnprocessableEntity},
		{"/api/reports/ledger?paid=maybe", http.StatusUnprocessableEntity},
		{"/api/reports/ledger?responsible_id=x", http.StatusUnprocessableEntity},
		{"/api/reports/open-balance/live", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rr := ts.do(t, http.MethodGet, tt.path, ""); rr.Code != tt.want {
			t.Errorf("%s status=%d want %d", tt.path, rr.Code, tt.want)
		}
	}
}

func TestLiveBalance(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) {
		d.LiveView = services.NewLiveView(d.Store, d.Reports)
	})
	ts.do(t, http.MethodPost, "/api/expenses", ts.expenseJSON("Rent", "800", 1))

	rr := ts.do(t, http.MethodGet, "/api/reports/open-balance/live", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	v := decode[openBalanceView](t, rr)
	if v.UpdatedAt == nil || v.GrandTotal.Cents != 80000 {
		t.Errorf("live balance = %+v", v)
	}
}

func TestMiddlewareStack(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.RequestsPerMinute = 2 })

	rr := ts.do(t, http.MethodGet, "/api/config", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	if rr := ts.do(t, http.MethodGet, "/.env", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("scanner request status=%d", rr.Code)
	}
	if rr := ts.do(t, http.MethodGet, "/api/installments/paid", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status=%d", rr.Code)
	}

	for i := 0; i < 2; i++ {
		ts.do(t, http.MethodPost, "/api/categories", `{"description":"C`+itoa(int64(i))+`"}`)
	}
	rr = ts.do(t, http.MethodPost, "/api/categories", `{"description":"C3"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if e := decode[errorResp](t, rr).Error; e.Code != CodeRateLimited {
		t.Errorf("code = %q", e.Code)
	}
}

func countRows(t testing.TB, st store.Store, table store.Table) int {
	t.Helper()
	rows, err := st.Query(context.Background(), table, nil, nil)
	if err != nil {
		t.Fatalf("query %s: %v", table, err)
	}
	return len(rows)
}
