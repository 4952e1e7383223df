package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinkflag/backend/internal/auth"
	"github.com/pinkflag/backend/internal/background"
	"github.com/pinkflag/backend/internal/config"
	"github.com/pinkflag/backend/internal/database"
	"github.com/pinkflag/backend/internal/handlers"
	"github.com/pinkflag/backend/internal/metrics"
	middlewareCustom "github.com/pinkflag/backend/internal/middleware"
	"github.com/pinkflag/backend/internal/providers"
	"github.com/pinkflag/backend/internal/repositories"
	"github.com/pinkflag/backend/internal/routes"
	"github.com/pinkflag/backend/internal/services"
	pkghttp "github.com/pinkflag/backend/pkg/http"
	pkglogger "github.com/pinkflag/backend/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Ledger repository owns all balance mutations
	ledgerRepo := repositories.NewLedgerRepository(db)

	// Upstream lookup providers
	nameService := providers.NewNameService(cfg.Providers.NameRegistry, cfg.Providers.NameFallback, logger)
	phoneClient := providers.NewPhoneClient(cfg.Providers.Phone)
	imageClient := providers.NewImageClient(cfg.Providers.Image)

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	lookupService := services.NewLookupService(ledgerRepo, nameService, phoneClient, imageClient, cfg.Credits, logger, auditLogger)
	creditService := services.NewCreditService(ledgerRepo, logger, auditLogger)

	// Token verification against the external identity provider
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret)

	// Client address resolution behind configured proxies
	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Handlers
	searchHandler := handlers.NewSearchHandler(lookupService)
	phoneHandler := handlers.NewPhoneHandler(lookupService)
	imageHandler := handlers.NewImageHandler(lookupService)
	creditsHandler := handlers.NewCreditsHandler(creditService)
	statusHandler := handlers.NewStatusHandler(handlers.ProviderStatus{
		NameSearch:  nameService.Configured(),
		PhoneLookup: phoneClient.Configured(),
		ImageSearch: imageClient.Configured(),
	})
	webhookHandler := handlers.NewWebhookHandler(creditService, cfg.Webhook.PurchaseSecret, ipConfig, logger)

	// Reaper settles searches stranded in pending by a crash
	reaper := background.NewPendingReaper(ledgerRepo, lookupService, logger, cfg.Reaper.Interval, cfg.Reaper.MaxPendingAge)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(metrics.Instrument)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, verifier, searchHandler, phoneHandler, imageHandler, creditsHandler, statusHandler, webhookHandler)

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start reaper
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	go reaper.Start(reaperCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reaperCancel()
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
