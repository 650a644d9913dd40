package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetbook/internal/amqp"
	"budgetbook/internal/backend"
	"budgetbook/internal/cli"
	apphttp "budgetbook/internal/http"
	applog "budgetbook/internal/log"
	"budgetbook/internal/services"
	"budgetbook/internal/store"
)

func main() {
	cfg, logger := cli.Bootstrap()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to create backend config", "error", err)
		os.Exit(1)
	}

	backendResult, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	st := backendResult.Store

	schedule, err := services.GetSchedule(cfg.InstallmentSchedule)
	if err != nil {
		logger.Error("Invalid installment schedule", "error", err, "schedule", cfg.InstallmentSchedule)
		os.Exit(1)
	}

	reports := services.NewReportService(st)
	liveView := services.NewLiveView(st, reports)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:          st,
		Expenses:       services.NewExpenseService(st, schedule),
		Refs:           services.NewReferenceService(st),
		Config:         services.NewConfigService(st),
		Reports:        reports,
		LiveView:       liveView,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
		ReportCacheTTL: cfg.ReportCacheTTL,
	})

	// Change notifications are optional; without a broker the worker falls back to
	// periodic refreshes.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", "error", err)
			amqpClient = nil
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP connection", "error", err)
			}
		}
		if err := backendResult.Close(); err != nil {
			logger.Error("Failed to close data backend", "error", err)
		}
	})

	go func() {
		if err := liveView.Run(ctx); err != nil {
			logger.Error("Live view stopped", "error", err)
		}
	}()

	if amqpClient != nil {
		forwarder := amqp.NewForwarder(amqpClient, 0)
		forwarder.Watch(st, store.Tables...)
		go forwarder.Run(ctx)
		logger.Info("Publishing change notifications", "exchange", cfg.AMQPExchange)
	}

	logger.Info("Starting budgetbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"schedule", cfg.InstallmentSchedule)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
