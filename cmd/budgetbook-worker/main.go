package main

import (
	"context"
	"os"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/backend"
	"budgetbook/internal/cli"
	applog "budgetbook/internal/log"
	"budgetbook/internal/services"
	"budgetbook/internal/sheets"
	gsheet "budgetbook/internal/sheets/google"
	"budgetbook/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(applog.ComponentWorker)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration invalid", "error", err)
		os.Exit(1)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend config", "error", err)
		os.Exit(1)
	}
	backendResult, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	st := backendResult.Store

	var exporter sheets.ReportExporter = sheets.LogExporter{Logger: logger.WithComponent(applog.ComponentSheets).Logger}
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Exporting reports to Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("No spreadsheet configured, reports go to the log")
	}

	reports := services.NewReportService(st)
	exportConfig := services.DefaultExportProcessorConfig()
	exportConfig.Interval = cfg.RefreshInterval
	exportConfig.MaxRetries = cfg.ExportRetries
	processor := services.NewExportProcessor(reports, exporter, exportConfig)

	var (
		consumer   worker.ChangeConsumer
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		consumer = amqpClient
	} else {
		logger.Warn("AMQP not configured, relying on periodic refreshes", "interval", cfg.RefreshInterval)
	}

	w := worker.NewRefreshWorker(services.NewLiveView(st, reports), processor, consumer, cfg.RefreshInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP connection", "error", err)
			}
		}
		if err := backendResult.Close(); err != nil {
			logger.Error("Failed to close data backend", "error", err)
		}
	})

	logger.Info("Starting budgetbook worker", "backend", cfg.DataBackend)
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
