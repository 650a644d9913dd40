package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/store"
)

// watchedTables are the tables whose changes invalidate the open balance.
var watchedTables = []store.Table{
	store.TableExpenses,
	store.TableInstallments,
	store.TablePaymentMethods,
}

// AffectsOpenBalance reports whether a change to t can alter the open balance.
func AffectsOpenBalance(t store.Table) bool {
	return slices.Contains(watchedTables, t)
}

// RefreshFunc is called with every recomputed open balance.
type RefreshFunc func(ctx context.Context, ob core.OpenBalance)

// LiveView keeps an open-balance snapshot current. Every change signal triggers a
// full recomputation; bursts of signals collapse into one refresh.
type LiveView struct {
	store   store.Store
	reports *ReportService
	signals chan struct{}

	mu        sync.RWMutex
	current   core.OpenBalance
	updatedAt time.Time
	listeners []RefreshFunc
}

func NewLiveView(s store.Store, reports *ReportService) *LiveView {
	return &LiveView{
		store:   s,
		reports: reports,
		signals: make(chan struct{}, 1),
	}
}

// OnRefresh registers fn to receive each new snapshot.
func (v *LiveView) OnRefresh(fn RefreshFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// Notify queues a refresh without blocking. It is safe to call from store change
// handlers and from external notification consumers.
func (v *LiveView) Notify() {
	select {
	case v.signals <- struct{}{}:
	default:
	}
}

// Snapshot returns the last computed open balance and when it was computed.
func (v *LiveView) Snapshot() (core.OpenBalance, time.Time) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current, v.updatedAt
}

// Refresh recomputes the open balance from the store and publishes it.
func (v *LiveView) Refresh(ctx context.Context) (core.OpenBalance, error) {
	ob, err := v.reports.OpenBalance(ctx)
	if err != nil {
		return core.OpenBalance{}, err
	}

	v.mu.Lock()
	v.current = ob
	v.updatedAt = time.Now()
	listeners := append([]RefreshFunc(nil), v.listeners...)
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, ob)
	}
	return ob, nil
}

// Run subscribes to store changes, computes an initial snapshot and refreshes on
// every signal until ctx is cancelled.
func (v *LiveView) Run(ctx context.Context) error {
	for _, t := range watchedTables {
		unsubscribe := v.store.OnChange(t, func(store.ChangeEvent) { v.Notify() })
		defer unsubscribe()
	}

	if _, err := v.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial open balance refresh failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.signals:
			if _, err := v.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "Open balance refresh failed", "error", err)
			}
		}
	}
}
