package main

import (
	"context"
	"io"
	"testing"

	"github.com/foodway/foodway-backend/internal/notify"
	"github.com/foodway/foodway-backend/internal/otp"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test-api", Output: io.Discard})
}

func TestBuildStoresRejectUnknownDrivers(t *testing.T) {
	cfg := &config.Config{}
	cfg.OTP.StoreDriver = "etcd"
	if _, err := buildOTPStore(cfg, nil); err == nil {
		t.Fatalf("expected unknown otp store to fail")
	}
	cfg.Dispatch.DutyStoreDriver = "etcd"
	if _, err := buildRoster(cfg, nil); err == nil {
		t.Fatalf("expected unknown duty store to fail")
	}
	cfg.Dispatch.StoreDriver = "etcd"
	if _, _, err := buildAssignmentStore(context.Background(), cfg, testLogger()); err == nil {
		t.Fatalf("expected unknown assignment store to fail")
	}
}

func TestBuildMemoryStores(t *testing.T) {
	cfg := &config.Config{}
	cfg.OTP.StoreDriver = config.StoreDriverMemory
	cfg.Dispatch.DutyStoreDriver = config.StoreDriverMemory
	cfg.Dispatch.StoreDriver = config.StoreDriverMemory

	store, err := buildOTPStore(cfg, nil)
	if err != nil {
		t.Fatalf("otp store: %v", err)
	}
	if _, ok := store.(*otp.MemoryStore); !ok {
		t.Fatalf("expected memory otp store got %T", store)
	}
	roster, err := buildRoster(cfg, nil)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if _, ok := roster.(*workers.MemoryRoster); !ok {
		t.Fatalf("expected memory roster got %T", roster)
	}
	_, dbClient, err := buildAssignmentStore(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("assignment store: %v", err)
	}
	if dbClient != nil {
		t.Fatalf("memory store must not open a database")
	}
}

func TestBuildNotifierFallsBackToLog(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "prod"}}
	notifier, err := buildNotifier(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	multi, ok := notifier.(*notify.Multi)
	if !ok {
		t.Fatalf("expected multi notifier got %T", notifier)
	}
	if names := multi.Channels(); len(names) != 1 || names[0] != "log" {
		t.Fatalf("expected only the log channel got %v", names)
	}
}

type stubExpirer struct{}

func (stubExpirer) ExpireStale(context.Context) (int, error) { return 0, nil }

func TestBuildCronRegistersJobs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Dispatch.StoreDriver = config.StoreDriverMemory
	cfg.Cron.AssignmentSchedule = "*/1 * * * *"
	cfg.Cron.OTPSweepSchedule = "*/10 * * * *"

	issuer, err := otp.NewIssuer(otp.IssuerParams{Store: otp.NewMemoryStore(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	svc, err := buildCron(cfg, testLogger(), nil, nil, stubExpirer{}, issuer)
	if err != nil {
		t.Fatalf("build cron: %v", err)
	}
	if svc == nil {
		t.Fatalf("expected cron service")
	}

	cfg.Cron.OTPSweepSchedule = "every tuesday"
	if _, err := buildCron(cfg, testLogger(), nil, nil, stubExpirer{}, issuer); err == nil {
		t.Fatalf("expected bad schedule to fail")
	}
}
