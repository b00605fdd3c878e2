package jobs

import (
	"presta-backoffice/internal/config"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
	"presta-backoffice/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store    repository.Store
	services *Services
	mora     finance.MoraPolicy
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Email  service.EmailService
	Loan   service.LoanService
	Drawer service.CashDrawerService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(store repository.Store, services *Services, mora finance.MoraPolicy, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		services: services,
		mora:     mora,
		config:   cfg,
	}
}

// Config exposes the configuration for schedule registration
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllDailyJobs runs all daily jobs (for manual execution)
func (jr *JobRunner) RunAllDailyJobs() {
	jr.SendOverdueReminders()
	jr.LogDrawerSummary()
}
