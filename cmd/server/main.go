package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "presta-backoffice/internal/api/http"
	"presta-backoffice/internal/config"
	"presta-backoffice/internal/finance"
	"presta-backoffice/internal/gateway"
	"presta-backoffice/internal/logger"
	"presta-backoffice/internal/repository"
	"presta-backoffice/internal/repository/firestore"
	"presta-backoffice/internal/repository/memory"
	"presta-backoffice/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Presta Back Office...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Store configuration", "type", cfg.Store.Type, "project_id", cfg.Store.ProjectID)

	ctx := context.Background()

	// Initialize Store
	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()
	logger.Info("Store initialized", "type", cfg.Store.Type)

	// Initialize penalty policy on the drawer's local timezone
	loc, err := time.LoadLocation(cfg.Drawer.Timezone)
	if err != nil {
		logger.Error("Failed to load timezone", "timezone", cfg.Drawer.Timezone, "error", err)
		log.Fatalf("Failed to load timezone %q: %v", cfg.Drawer.Timezone, err)
	}
	mora := finance.NewMoraPolicy(cfg.Penalty.MonthlyRate, loc)

	// Initialize Services
	loanSvc := service.NewLoanService(store, mora)
	settlementSvc := service.NewSettlementService(store, mora)
	drawerSvc := service.NewCashDrawerService(store, loc, cfg.Drawer.RoundingStep)
	emailSvc := service.NewEmailService(cfg.Email.SendGridAPIKey, cfg.Email.From, cfg.Email.FromName, cfg.Email.Enabled)
	receiptSvc := service.NewReceiptService(store, emailSvc)

	// Initialize Gateway Client
	gw := gateway.NewClient(gateway.Config{
		APIKey:        cfg.Gateway.APIKey,
		SecretKey:     cfg.Gateway.SecretKey,
		BaseURL:       cfg.Gateway.BaseURL,
		ReturnURLBase: cfg.Gateway.ReturnURLBase,
		NotifyURL:     cfg.Gateway.NotifyURL,
	})

	// Set up HTTP server
	handler := httpapi.NewHandler(loanSvc, settlementSvc, drawerSvc, receiptSvc, gw)
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
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
