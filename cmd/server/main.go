package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mpesa-payment-gateway/internal/abuse"
	"mpesa-payment-gateway/internal/analytics"
	"mpesa-payment-gateway/internal/config"
	"mpesa-payment-gateway/internal/handler"
	"mpesa-payment-gateway/internal/middleware"
	"mpesa-payment-gateway/internal/mpesa"
	"mpesa-payment-gateway/internal/pending"
	"mpesa-payment-gateway/internal/service"
	"mpesa-payment-gateway/internal/store"
	"mpesa-payment-gateway/internal/token"
	"mpesa-payment-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Starting M-Pesa payment gateway")

	// Initialize durable document store
	docs, err := store.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		appLogger.Error("Failed to open durable store", "error", err)
		log.Fatalf("Failed to open durable store: %v", err)
	}
	defer docs.Close()

	// Initialize core components
	pendingStore := pending.NewStore(cfg.Pending.TTL, appLogger)
	providerClient := mpesa.NewClient(&cfg.Mpesa, appLogger)
	tokenCache := token.NewCache(docs, providerClient, appLogger)
	statusStore := service.NewStatusStore(docs, cfg.Status.CacheTTL, appLogger)
	events := analytics.New(docs, cfg.Analytics.BatchSize, appLogger)
	limiter := abuse.NewLimiter(docs, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window, appLogger)

	paymentService := service.New(docs, pendingStore, tokenCache, providerClient, statusStore, events, limiter, appLogger)

	// Start background tasks
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	bg.Add(3)
	go func() {
		defer bg.Done()
		pendingStore.RunSweeper(bgCtx, cfg.Pending.SweepInterval)
	}()
	go func() {
		defer bg.Done()
		events.Run(bgCtx, cfg.Analytics.FlushInterval)
	}()
	go func() {
		defer bg.Done()
		paymentService.RunStatusPoller(bgCtx, cfg.Status.PollInterval, cfg.Status.PollCutoff)
	}()

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, appLogger)
	callbackHandler := handler.NewCallbackHandler(paymentService, appLogger)
	statusHandler := handler.NewStatusHandler(paymentService, appLogger)
	healthHandler := handler.NewHealthHandler(pendingStore, appLogger)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.APIKey, appLogger)

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Public routes: health plus the provider's callback endpoints
	mux.HandleFunc("/health", healthHandler.CheckHealth)
	mux.HandleFunc("/mpesa/callback", callbackHandler.ReceiveCallback)
	mux.HandleFunc("/payments/confirmation", callbackHandler.ReceiveConfirmation)

	// Protected routes
	mux.HandleFunc("/initiate-payment", authMiddleware.Authenticate(paymentHandler.InitiatePayment))
	mux.HandleFunc("/payment-status", authMiddleware.Authenticate(statusHandler.GetPaymentStatus))
	mux.HandleFunc("/query-transaction", authMiddleware.Authenticate(statusHandler.QueryTransaction))
	mux.HandleFunc("/token", authMiddleware.Authenticate(statusHandler.GetTokenInfo))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("M-Pesa payment gateway started successfully", "address", addr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop background tasks and flush remaining events
	stopBackground()
	bg.Wait()
	events.Flush(ctx)

	appLogger.Info("Server stopped gracefully")
}
