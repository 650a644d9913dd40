// Package worker runs the background side of budgetbook: it listens for change
// notifications, keeps the open balance current and exports reports.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/services"

	"golang.org/x/sync/errgroup"
)

// ChangeConsumer delivers change notifications until ctx is cancelled.
type ChangeConsumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// RefreshWorker turns change notifications into open-balance refreshes and hands
// every refreshed snapshot to the export processor.
type RefreshWorker struct {
	view     *services.LiveView
	exporter *services.ExportProcessor
	consumer ChangeConsumer
	interval time.Duration

	handled atomic.Int64
	skipped atomic.Int64
}

// NewRefreshWorker wires view to exporter. consumer may be nil, in which case the
// worker relies on local store events and the periodic refresh only.
func NewRefreshWorker(view *services.LiveView, exporter *services.ExportProcessor, consumer ChangeConsumer, interval time.Duration) *RefreshWorker {
	if exporter != nil {
		view.OnRefresh(exporter.Enqueue)
	}
	return &RefreshWorker{
		view:     view,
		exporter: exporter,
		consumer: consumer,
		interval: interval,
	}
}

// HandleChangeMessage processes a single change notification from AMQP.
func (w *RefreshWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	if msg == nil {
		return fmt.Errorf("nil change message")
	}

	ev := msg.Event()
	if !services.AffectsOpenBalance(ev.Table) {
		w.skipped.Add(1)
		slog.DebugContext(ctx, "Ignoring change outside the open balance",
			"message_id", msg.MessageID,
			"table", msg.Table)
		return nil
	}

	slog.InfoContext(ctx, "Processing change message",
		"message_id", msg.MessageID,
		"table", msg.Table,
		"kind", msg.Kind,
		"record_id", msg.RecordID)

	w.handled.Add(1)
	w.view.Notify()
	return nil
}

// Run starts the export processor and the live view, consumes notifications and
// refreshes on every interval tick. It returns when ctx is cancelled or a
// component fails.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if w.exporter != nil {
		if err := w.exporter.Start(ctx); err != nil {
			return fmt.Errorf("start export processor: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.exporter.Stop(stopCtx); err != nil {
				slog.Warn("Export processor did not stop cleanly", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.view.Run(gctx)
	})

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeChanges(gctx, w.HandleChangeMessage)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("consume changes: %w", err)
			}
			return nil
		})
	}

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					slog.DebugContext(gctx, "Periodic open balance refresh")
					w.view.Notify()
				}
			}
		})
	}

	slog.InfoContext(ctx, "Refresh worker started",
		"consumer", w.consumer != nil,
		"export", w.exporter != nil,
		"interval", w.interval)

	return g.Wait()
}

// Stats returns how many notifications triggered a refresh and how many were
// ignored.
func (w *RefreshWorker) Stats() (handled, skipped int64) {
	return w.handled.Load(), w.skipped.Load()
}
