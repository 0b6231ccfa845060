package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/loan-ledger/internal/app"
	"github.com/segyhp/loan-ledger/internal/config"
	"github.com/segyhp/loan-ledger/internal/logger"
	"github.com/segyhp/loan-ledger/internal/service"

	"github.com/robfig/cron/v3"
)

// refreshTimeout bounds one run of the daily refresh job.
const refreshTimeout = time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	slog.SetDefault(log)
	log.Info("Starting loan scheduler...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := app.Build(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	// Initialize cron scheduler
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.SchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	// Schedule tasks
	if _, err := c.AddFunc(cfg.Scheduler.RefreshSpec, refreshJob(components.Service, log)); err != nil {
		log.Error("Error scheduling loan refresh job", "spec", cfg.Scheduler.RefreshSpec, "error", err)
		os.Exit(1)
	}

	// Start the scheduler
	c.Start()
	log.Info("Scheduler started successfully",
		"refresh_spec", cfg.Scheduler.RefreshSpec,
		"timezone", cfg.Scheduler.Timezone,
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
}

// refreshJob re-derives every active loan so overdue figures follow the
// calendar even on days without repayments.
func refreshJob(svc *service.LoanService, log *slog.Logger) func() {
	return func() {
		log.Info("Running daily loan refresh job...")

		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		result, err := svc.RefreshActiveLoans(ctx)
		if err != nil {
			log.Error("Loan refresh job failed", "error", err)
			return
		}

		log.Info("Loan refresh job finished",
			"total", result.Total,
			"refreshed", result.Refreshed,
			"failed", result.Failed,
		)
	}
}
