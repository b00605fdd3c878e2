package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presta-backoffice/internal/config"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/jobs"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
	"presta-backoffice/internal/repository/firestore"
	"presta-backoffice/internal/repository/memory"
	"presta-backoffice/internal/scheduler"
	"presta-backoffice/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'send-overdue-reminders', 'log-drawer-summary', 'all-daily')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Presta Cronjob Runner...", "log_level", cfg.Log.Level)

	ctx := context.Background()

	// Initialize Store
	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()
	logger.Info("Store initialized", "type", cfg.Store.Type)

	loc, err := time.LoadLocation(cfg.Drawer.Timezone)
	if err != nil {
		logger.Error("Failed to load timezone", "timezone", cfg.Drawer.Timezone, "error", err)
		log.Fatalf("Failed to load timezone %q: %v", cfg.Drawer.Timezone, err)
	}
	mora := finance.NewMoraPolicy(cfg.Penalty.MonthlyRate, loc)

	// Initialize Services
	emailService := service.NewEmailService(
		cfg.Email.SendGridAPIKey,
		cfg.Email.From,
		cfg.Email.FromName,
		cfg.Email.Enabled,
	)
	loanService := service.NewLoanService(store, mora)
	drawerService := service.NewCashDrawerService(store, loc, cfg.Drawer.RoundingStep)

	jobServices := &jobs.Services{
		Email:  emailService,
		Loan:   loanService,
		Drawer: drawerService,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, jobServices, mora, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cronScheduler.Stop()
	logger.Info("Cronjob runner stopped")
}

// runJobOnce executes a single named job for manual runs and debugging.
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "send-overdue-reminders":
		jobRunner.SendOverdueReminders()
	case "log-drawer-summary":
		jobRunner.LogDrawerSummary()
	case "all-daily":
		jobRunner.RunAllDailyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		log.Fatalf("Unknown job name: %s", jobName)
	}
}

// newStore builds the configured store backend.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Type {
	case "firestore":
		return firestore.New(ctx, firestore.Config{
			ProjectID:       cfg.Store.ProjectID,
			CredentialsFile: cfg.Store.CredentialsFile,
		})
	default:
		return memory.New(), nil
	}
}
