package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetbook/internal/core"
	"budgetbook/internal/sheets"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often a pending export is retried or a periodic export runs (default: 30s)
	Interval time.Duration

	// MaxRetries is the number of attempts per export before giving up until the next change (default: 3)
	MaxRetries int

	// SummaryFilter selects the summary exported next to the open balance.
	SummaryFilter core.SummaryFilter
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval:      30 * time.Second,
		MaxRetries:    3,
		SummaryFilter: core.SummaryFilter{GroupBy: core.GroupPaymentMethod},
	}
}

// ExportProcessor publishes refreshed reports to a spreadsheet. Refreshes mark the
// processor dirty; the loop exports as soon as it is signalled and retries on the
// next tick after a failure.
type ExportProcessor struct {
	reports  *ReportService
	exporter sheets.ReportExporter
	config   ExportProcessorConfig

	pending chan core.OpenBalance

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(reports *ReportService, exporter sheets.ReportExporter, config ExportProcessorConfig) *ExportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultExportProcessorConfig().Interval
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	return &ExportProcessor{
		reports:  reports,
		exporter: exporter,
		config:   config,
		pending:  make(chan core.OpenBalance, 1),
	}
}

// Enqueue schedules ob for export, replacing any snapshot not yet exported. It has
// the RefreshFunc signature so it can be registered on a LiveView.
func (p *ExportProcessor) Enqueue(_ context.Context, ob core.OpenBalance) {
	for {
		select {
		case p.pending <- ob:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Export processor started",
		"interval", p.config.Interval,
		"max_retries", p.config.MaxRetries)
	return nil
}

// Stop gracefully stops the processor and waits for completion. If ctx expires
// first the processor keeps shutting down and a later Stop waits again.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	var failed *core.OpenBalance
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case ob := <-p.pending:
			failed = nil
			if err := p.Export(ctx, ob); err != nil {
				failed = &ob
			}
		case <-ticker.C:
			if failed == nil {
				continue
			}
			if err := p.Export(ctx, *failed); err == nil {
				failed = nil
			}
		}
	}
}

// Export writes ob and a freshly computed summary, retrying each step up to
// MaxRetries times.
func (p *ExportProcessor) Export(ctx context.Context, ob core.OpenBalance) error {
	at := time.Now()
	err := p.withRetry(ctx, "open_balance", func() error {
		return p.exporter.ExportOpenBalance(ctx, ob, at)
	})
	if err != nil {
		return err
	}

	summary, err := p.reports.Summary(ctx, p.config.SummaryFilter)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute summary for export", "error", err)
		return err
	}
	return p.withRetry(ctx, "summary", func() error {
		return p.exporter.ExportSummary(ctx, summary, at)
	})
}

func (p *ExportProcessor) withRetry(ctx context.Context, report string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		slog.WarnContext(ctx, "Report export failed",
			"report", report,
			"attempt", attempt,
			"error", err)
		if attempt < p.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	slog.ErrorContext(ctx, "Report export failed permanently",
		"report", report,
		"attempts", p.config.MaxRetries)
	return err
}
