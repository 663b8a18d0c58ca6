package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/wolfman30/clinic-agenda/internal/api/router"
	appconfig "github.com/wolfman30/clinic-agenda/internal/config"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/internal/http/handlers"
	"github.com/wolfman30/clinic-agenda/internal/reconcile"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/internal/schedule"
	"github.com/wolfman30/clinic-agenda/internal/stats"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic agenda API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	metricsHandler, m := setupMetrics()

	store, err := setupRowStore(ctx, cfg, m, logger)
	if err != nil {
		logger.Error("failed to initialize row store", "error", err)
		os.Exit(1)
	}
	tables, closeCache := setupCache(cfg, store, m, logger)
	defer closeCache()

	docs, err := setupFileStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize file store", "error", err)
		os.Exit(1)
	}

	// Initialize services
	codec := rowstore.DefaultCodec()
	patients := roster.NewService(store, tables, cfg.PatientsTable, codec, logger)
	engine := reconcile.NewEngine(store, tables, cfg.AppointmentsTable, codec, m.Reconcile, logger)
	scheduleSvc := schedule.NewService(tables, engine, patients, cfg.AppointmentsTable, codec)
	statsSvc := stats.NewService(tables, cfg.AppointmentsTable, cfg.PatientsTable, codec)

	// Initialize handlers
	agendaHandler := handlers.NewAgendaHandler(handlers.AgendaConfig{
		Service: scheduleSvc,
		Defaults: handlers.ViewDefaults{
			StartHour: cfg.DefaultStartHour,
			EndHour:   cfg.DefaultEndHour,
			Beds:      cfg.BedCount,
		},
		Logger: logger,
	})
	patientHandler := handlers.NewPatientHandler(patients, logger)
	fileHandler := handlers.NewFileHandler(files.NewService(docs, patients, logger), cfg.MaxUploadBytes, logger)
	statsHandler := stats.NewHandler(statsSvc, logger)

	if cfg.StaffJWTSecret == "" {
		if cfg.IsProduction() {
			logger.Error("STAFF_JWT_SECRET is required in production")
			os.Exit(1)
		}
		logger.Warn("STAFF_JWT_SECRET not set; staff routes are open")
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		AgendaHandler:      agendaHandler,
		PatientHandler:     patientHandler,
		FileHandler:        fileHandler,
		StatsHandler:       statsHandler,
		MetricsHandler:     metricsHandler,
		StaffJWTSecret:     cfg.StaffJWTSecret,
		AllowAnonymous:     !cfg.IsProduction(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
