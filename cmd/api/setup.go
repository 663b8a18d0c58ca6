package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfman30/clinic-agenda/cmd/mainconfig"
	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	appconfig "github.com/wolfman30/clinic-agenda/internal/config"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

type appMetrics struct {
	RowStore  *metrics.RowStoreMetrics
	Cache     *metrics.CacheMetrics
	Reconcile *metrics.ReconcileMetrics
}

func setupMetrics() (http.Handler, *appMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := &appMetrics{
		RowStore:  metrics.NewRowStoreMetrics(reg),
		Cache:     metrics.NewCacheMetrics(reg),
		Reconcile: metrics.NewReconcileMetrics(reg),
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// setupRowStore returns the Sheets-backed store, or an in-process one seeded
// with empty tables when USE_MEMORY_STORE is set.
func setupRowStore(ctx context.Context, cfg *appconfig.Config, m *appMetrics, logger *logging.Logger) (rowstore.Store, error) {
	if cfg.UseMemoryStore {
		logger.Warn("using in-memory row store; data is lost on restart")
		mem := rowstore.NewMemoryStore()
		mem.Seed(cfg.AppointmentsTable, agenda.DefaultHeader)
		mem.Seed(cfg.PatientsTable, roster.DefaultHeader)
		return rowstore.NewInstrumented(mem, m.RowStore, logger), nil
	}
	sheets, err := rowstore.NewSheetsStore(ctx, cfg.SpreadsheetID, mainconfig.GoogleClientOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	logger.Info("row store connected", "backend", "sheets")
	return rowstore.NewInstrumented(sheets, m.RowStore, logger), nil
}

// setupCache prefers Redis so replicas share invalidations. The returned
// func releases the client.
func setupCache(cfg *appconfig.Config, loader rowstore.Reader, m *appMetrics, logger *logging.Logger) (cache.Tables, func()) {
	client := mainconfig.NewRedisClient(cfg)
	if client == nil {
		logger.Info("snapshot cache", "backend", "memory", "ttl", cfg.CacheTTL)
		return cache.NewMemoryCache(loader, cfg.CacheTTL, m.Cache), func() {}
	}
	logger.Info("snapshot cache", "backend", "redis", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return cache.NewRedisCache(client, loader, cfg.CacheTTL, m.Cache, logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func setupFileStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (files.Store, error) {
	switch cfg.FileStore {
	case "memory":
		logger.Warn("using in-memory file store; uploads are lost on restart")
		return files.NewMemoryStore(), nil
	case "s3":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return files.NewS3Store(mainconfig.NewS3Client(awsCfg, cfg), cfg.S3Bucket)
	case "drive", "":
		return files.NewDriveStore(ctx, cfg.DriveRootFolderID, mainconfig.GoogleClientOptions(cfg)...)
	default:
		return nil, fmt.Errorf("unknown FILE_STORE %q", cfg.FileStore)
	}
}
