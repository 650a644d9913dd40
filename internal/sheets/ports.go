// Package sheets defines the outbound ports used to publish reports to spreadsheets.
package sheets

import (
	"context"
	"log/slog"
	"time"

	"budgetbook/internal/core"
)

// Ports for outbound adapters.
type (
	// BalanceExporter publishes the open-balance view.
	BalanceExporter interface {
		ExportOpenBalance(ctx context.Context, ob core.OpenBalance, at time.Time) error
	}

	// SummaryExporter publishes a grouped summary.
	SummaryExporter interface {
		ExportSummary(ctx context.Context, s core.Summary, at time.Time) error
	}

	ReportExporter interface {
		BalanceExporter
		SummaryExporter
	}
)

// LogExporter writes reports to the structured log. It stands in when no
// spreadsheet is configured.
type LogExporter struct {
	Logger *slog.Logger
}

var _ ReportExporter = LogExporter{}

func (e LogExporter) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e LogExporter) ExportOpenBalance(ctx context.Context, ob core.OpenBalance, at time.Time) error {
	for _, g := range ob.Groups {
		e.logger().InfoContext(ctx, "Open balance",
			"payment_method", g.Description,
			"total", g.Total.String(),
			"items", g.Items)
	}
	e.logger().InfoContext(ctx, "Open balance total", "total", ob.GrandTotal.String(), "at", at.Format(time.RFC3339))
	return nil
}

func (e LogExporter) ExportSummary(ctx context.Context, s core.Summary, at time.Time) error {
	for _, g := range s.Groups {
		e.logger().InfoContext(ctx, "Summary group", "key", g.Key, "rows", len(g.Rows), "subtotal", g.Subtotal.String())
	}
	e.logger().InfoContext(ctx, "Summary total",
		"group_by", s.Filter.GroupBy,
		"total", s.GrandTotal.String(),
		"at", at.Format(time.RFC3339))
	return nil
}
