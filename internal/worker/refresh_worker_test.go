package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/core"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
	"budgetbook/internal/store/memory"
)

// silentStore hides local change events, as a database shared with another
// process would.
type silentStore struct {
	store.Store
}

func (silentStore) OnChange(store.Table, store.ChangeHandler) func() { return func() {} }

type chanConsumer struct {
	msgs chan *amqp.ChangeMessage
}

func (c *chanConsumer) ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-c.msgs:
			if err := handler(ctx, m); err != nil {
				return err
			}
		}
	}
}

type recordingExporter struct {
	mu        sync.Mutex
	balances  []int64
	summaries int
}

func (e *recordingExporter) ExportOpenBalance(_ context.Context, ob core.OpenBalance, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balances = append(e.balances, ob.GrandTotal.Cents)
	return nil
}

func (e *recordingExporter) ExportSummary(context.Context, core.Summary, time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries++
	return nil
}

func (e *recordingExporter) last() (int64, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.balances) == 0 {
		return -1, e.summaries
	}
	return e.balances[len(e.balances)-1], e.summaries
}

func change(table store.Table, id int64) *amqp.ChangeMessage {
	return amqp.NewChangeMessage(store.ChangeEvent{Table: table, Kind: store.ChangeInsert, ID: id})
}

func newExpense(t *testing.T, st store.Store) *services.ExpenseService {
	t.Helper()
	ctx := context.Background()
	refs := services.NewReferenceService(st)
	cat, err := refs.CreateCategory(ctx, core.Category{Description: "Home"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	resp, err := refs.CreateResponsible(ctx, core.Responsible{Description: "Ann"})
	if err != nil {
		t.Fatalf("create responsible: %v", err)
	}
	pm, err := refs.CreatePaymentMethod(ctx, core.PaymentMethod{Description: "Visa", Active: true, Kind: core.KindCard})
	if err != nil {
		t.Fatalf("create payment method: %v", err)
	}

	expenses := services.NewExpenseService(st, services.MonthlySchedule)
	_, err = expenses.Create(ctx, core.ExpenseInput{
		Description:      "Sofa",
		Amount:           core.Money{Cents: 90000},
		CategoryID:       cat.ID,
		ResponsibleID:    resp.ID,
		PaymentMethodID:  pm.ID,
		PurchaseDate:     core.NewDate(2024, 6, 1),
		InstallmentCount: 3,
	})
	if err != nil {
		t.Fatalf("create expense: %v", err)
	}
	return expenses
}

func TestRefreshWorker_HandleChangeMessage(t *testing.T) {
	st := memory.New()
	view := services.NewLiveView(st, services.NewReportService(st))
	w := NewRefreshWorker(view, nil, nil, 0)
	ctx := context.Background()

	tests := []struct {
		table store.Table
		want  string
	}{
		{store.TableExpenses, "handled"},
		{store.TableInstallments, "handled"},
		{store.TablePaymentMethods, "handled"},
		{store.TableCategories, "skipped"},
		{store.TableConfig, "skipped"},
	}
	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			h0, s0 := w.Stats()
			if err := w.HandleChangeMessage(ctx, change(tt.table, 1)); err != nil {
				t.Fatalf("HandleChangeMessage() error = %v", err)
			}
			h1, s1 := w.Stats()
			got := "handled"
			if s1 > s0 {
				got = "skipped"
			}
			if got != tt.want || (h1-h0)+(s1-s0) != 1 {
				t.Errorf("%s: got %s (handled %d->%d, skipped %d->%d)", tt.table, got, h0, h1, s0, s1)
			}
		})
	}

	if err := w.HandleChangeMessage(ctx, nil); err == nil {
		t.Error("nil message accepted")
	}
}

func TestRefreshWorker_RunExportsOnNotification(t *testing.T) {
	base := memory.New()
	st := silentStore{base}
	reports := services.NewReportService(st)
	view := services.NewLiveView(st, reports)
	exp := &recordingExporter{}
	processor := services.NewExportProcessor(reports, exp, services.ExportProcessorConfig{
		Interval:   time.Hour,
		MaxRetries: 1,
	})
	consumer := &chanConsumer{msgs: make(chan *amqp.ChangeMessage, 1)}
	w := NewRefreshWorker(view, processor, consumer, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool {
		total, summaries := exp.last()
		return total == 0 && summaries >= 1
	})

	// Written behind the view's back; only the notification reveals it.
	newExpense(t, st)
	consumer.msgs <- change(store.TableExpenses, 1)

	waitFor(t, func() bool {
		total, _ := exp.last()
		return total == 90000
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if processor.IsRunning() {
		t.Error("export processor still running after shutdown")
	}
}

func TestRefreshWorker_PeriodicRefresh(t *testing.T) {
	st := silentStore{memory.New()}
	view := services.NewLiveView(st, services.NewReportService(st))
	w := NewRefreshWorker(view, nil, nil, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, func() bool {
		_, at := view.Snapshot()
		return !at.IsZero()
	})
	newExpense(t, st)

	waitFor(t, func() bool {
		ob, _ := view.Snapshot()
		return ob.GrandTotal.Cents == 90000
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
