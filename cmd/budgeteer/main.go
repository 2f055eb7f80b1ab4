package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/budget"
	"budgeteer/internal/cli"
	apphttp "budgeteer/internal/http"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

func main() {
	logger := cli.SetupLogger(log.ComponentApp)
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The AMQP revalidator is optional: without it mutations still
	// work, downstream consumers just never hear about them.
	var revalidator services.Revalidator
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, cache invalidation disabled", "error", err)
	} else {
		revalidator = amqpClient
		defer amqpClient.Close()
	}

	aggregator := budget.NewAggregator(repo, logger.WithComponent(log.ComponentBudget).Logger)

	srv := apphttp.NewServer(":"+cfg.Port,
		services.NewTransactionService(repo, revalidator, cfg.ImportMaxRows),
		services.NewCategoryService(repo, revalidator),
		services.NewBudgetService(repo, aggregator, revalidator),
	)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting budgeteer server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
