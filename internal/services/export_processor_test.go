package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetbook/internal/core"
)

type fakeExporter struct {
	mu          sync.Mutex
	failBalance int // number of balance calls that fail before succeeding
	balances    []core.OpenBalance
	summaries   []core.Summary
}

func (e *fakeExporter) ExportOpenBalance(_ context.Context, ob core.OpenBalance, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failBalance > 0 {
		e.failBalance--
		return errors.New("sheet unavailable")
	}
	e.balances = append(e.balances, ob)
	return nil
}

func (e *fakeExporter) ExportSummary(_ context.Context, s core.Summary, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries = append(e.summaries, s)
	return nil
}

func (e *fakeExporter) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.balances), len(e.summaries)
}

func TestExportProcessor_ExportRetries(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.input("Gym", 3900, 1, core.NewDate(2024, 5, 1)))
	exp := &fakeExporter{failBalance: 2}
	p := NewExportProcessor(f.reports, exp, ExportProcessorConfig{Interval: time.Second, MaxRetries: 3})

	ob, _ := f.reports.OpenBalance(context.Background())
	if err := p.Export(context.Background(), ob); err != nil {
		t.Fatalf("Export: %v", err)
	}
	balances, summaries := exp.counts()
	if balances != 1 || summaries != 1 {
		t.Fatalf("exported %d balances and %d summaries, want 1 and 1", balances, summaries)
	}
	if got := exp.summaries[0].GrandTotal.Cents; got != 3900 {
		t.Errorf("summary total = %d, want 3900", got)
	}
}

func TestExportProcessor_ExportGivesUp(t *testing.T) {
	f := newFixture(t)
	exp := &fakeExporter{failBalance: 5}
	p := NewExportProcessor(f.reports, exp, ExportProcessorConfig{Interval: time.Second, MaxRetries: 2})

	if err := p.Export(context.Background(), core.OpenBalance{}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if _, summaries := exp.counts(); summaries != 0 {
		t.Error("summary exported after balance failure")
	}
}

func TestExportProcessor_Lifecycle(t *testing.T) {
	f := newFixture(t)
	exp := &fakeExporter{}
	p := NewExportProcessor(f.reports, exp, ExportProcessorConfig{Interval: 50 * time.Millisecond, MaxRetries: 1})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
	if !p.IsRunning() {
		t.Error("processor not running")
	}

	p.Enqueue(ctx, core.OpenBalance{GrandTotal: core.Money{Cents: 1}})
	waitFor(t, func() bool {
		b, _ := exp.counts()
		return b == 1
	})

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor still running after Stop")
	}
}

func TestExportProcessor_EnqueueKeepsLatest(t *testing.T) {
	p := NewExportProcessor(nil, &fakeExporter{}, DefaultExportProcessorConfig())
	for i := int64(1); i <= 3; i++ {
		p.Enqueue(context.Background(), core.OpenBalance{GrandTotal: core.Money{Cents: i}})
	}
	got := <-p.pending
	if got.GrandTotal.Cents != 3 {
		t.Errorf("pending total = %d, want 3", got.GrandTotal.Cents)
	}
}

func TestExportProcessor_RetriesFailedExportOnTick(t *testing.T) {
	f := newFixture(t)
	exp := &fakeExporter{failBalance: 1}
	p := NewExportProcessor(f.reports, exp, ExportProcessorConfig{Interval: 20 * time.Millisecond, MaxRetries: 1})
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(ctx)

	p.Enqueue(ctx, core.OpenBalance{})
	waitFor(t, func() bool {
		b, _ := exp.counts()
		return b == 1
	})
}

// blockingExporter holds every balance export until release is closed.
type blockingExporter struct {
	fakeExporter
	entered chan struct{}
	release chan struct{}
}

func (e *blockingExporter) ExportOpenBalance(ctx context.Context, ob core.OpenBalance, at time.Time) error {
	select {
	case e.entered <- struct{}{}:
	default:
	}
	<-e.release
	return e.fakeExporter.ExportOpenBalance(ctx, ob, at)
}

func TestExportProcessor_StopAfterTimeout(t *testing.T) {
	f := newFixture(t)
	exp := &blockingExporter{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewExportProcessor(f.reports, exp, ExportProcessorConfig{Interval: time.Hour, MaxRetries: 1})
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	p.Enqueue(ctx, core.OpenBalance{})
	select {
	case <-exp.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("export never started")
	}

	for i := 0; i < 2; i++ {
		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		err := p.Stop(short)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Stop #%d error = %v, want deadline exceeded", i+1, err)
		}
		if !p.IsRunning() {
			t.Fatalf("processor reported stopped after Stop #%d timed out", i+1)
		}
	}

	close(exp.release)
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("final Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor still running after Stop")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop after restart: %v", err)
	}
}
