package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	appconfig "github.com/wolfman30/clinic-agenda/internal/config"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/files"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.Reconcile.ObserveWrite("append")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_reconcile_writes_total") {
		t.Fatalf("expected reconcile writes counter to be exported")
	}
}

func TestSetupRowStoreMemorySeedsTables(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{UseMemoryStore: true, AppointmentsTable: "Turnos", PatientsTable: "Pacientes"}
	_, m := setupMetrics()

	store, err := setupRowStore(context.Background(), cfg, m, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"Turnos", "Pacientes"} {
		tbl, err := store.ReadTable(context.Background(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(tbl.Header) == 0 {
			t.Fatalf("expected %s to have a header", name)
		}
	}
}

func TestSetupRowStoreRequiresSpreadsheet(t *testing.T) {
	logger := logging.New("error")
	_, m := setupMetrics()
	if _, err := setupRowStore(context.Background(), &appconfig.Config{}, m, logger); err == nil {
		t.Fatalf("expected error without spreadsheet id")
	}
}

func TestSetupCacheBackends(t *testing.T) {
	logger := logging.New("error")
	_, m := setupMetrics()

	tables, closeFn := setupCache(&appconfig.Config{}, nil, m, logger)
	defer closeFn()
	if _, ok := tables.(*cache.MemoryCache); !ok {
		t.Fatalf("expected memory cache without redis, got %T", tables)
	}

	mr := miniredis.RunT(t)
	tables, closeRedis := setupCache(&appconfig.Config{RedisAddr: mr.Addr()}, nil, m, logger)
	defer closeRedis()
	if _, ok := tables.(*cache.RedisCache); !ok {
		t.Fatalf("expected redis cache, got %T", tables)
	}
}

func TestSetupFileStore(t *testing.T) {
	logger := logging.New("error")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	store, err := setupFileStore(context.Background(), &appconfig.Config{FileStore: "memory"}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*files.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	store, err = setupFileStore(context.Background(), &appconfig.Config{
		FileStore:          "s3",
		S3Bucket:           "clinic-docs",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*files.S3Store); !ok {
		t.Fatalf("expected s3 store, got %T", store)
	}

	if _, err := setupFileStore(context.Background(), &appconfig.Config{FileStore: "drive"}, logger); err == nil {
		t.Fatalf("expected error without drive root folder")
	}
	if _, err := setupFileStore(context.Background(), &appconfig.Config{FileStore: "ftp"}, logger); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
