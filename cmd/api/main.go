package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/foodway/foodway-backend/api/routes"
	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/broadcast"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/notify"
	"github.com/foodway/foodway-backend/internal/otp"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
	"github.com/foodway/foodway-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := cfg.Dispatch.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to load dispatch timezone", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	assignmentStore, dbClient, err := buildAssignmentStore(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap assignment store", err)
		os.Exit(1)
	}
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
	}

	broker, err := broadcast.NewBroker(broadcast.BrokerParams{
		Logger:       logg,
		Metrics:      dispatchMetrics,
		BufferSize:   cfg.Dispatch.BrokerBuffer,
		TombstoneTTL: cfg.Dispatch.TombstoneTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create broker", err)
		os.Exit(1)
	}
	defer broker.Close()

	notifier, err := buildNotifier(cfg, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}
	notifications, err := notify.NewDispatcher(notify.DispatcherParams{
		Notifier:    notifier,
		Logger:      logg,
		Metrics:     dispatchMetrics,
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	otpStore, err := buildOTPStore(cfg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create otp store", err)
		os.Exit(1)
	}
	issuer, err := otp.NewIssuer(otp.IssuerParams{
		Store:         otpStore,
		Notifications: notifications,
		Logger:        logg,
		Metrics:       dispatchMetrics,
		LogCodes:      cfg.App.IsDev() && cfg.OTP.LogCodesInDev,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create otp issuer", err)
		os.Exit(1)
	}

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		Store:       assignmentStore,
		Publisher:   broker,
		Logger:      logg,
		Metrics:     dispatchMetrics,
		Location:    loc,
		DispatchTTL: cfg.Dispatch.DispatchTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatch.NewService(dispatch.ServiceParams{
		Assignments:    assignmentService,
		OTP:            issuer,
		DeliveryPolicy: otp.DeliveryPolicy(cfg.OTP),
		AccountPolicy:  otp.AccountPolicy(cfg.OTP),
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	roster, err := buildRoster(cfg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create duty roster", err)
		os.Exit(1)
	}
	workerService, err := workers.NewService(roster, broker, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	cronService, err := buildCron(cfg, logg, registry, redisClient, assignmentService, issuer)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer, closeIntake, err := buildIntake(ctx, cfg, logg, redisClient, dispatchService)
	if err != nil {
		logg.Error(context.Background(), "failed to create order intake", err)
		os.Exit(1)
	}
	defer closeIntake()

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Redis:       redisClient,
		Gatherer:    registry,
		Broker:      broker,
		Assignments: assignmentService,
		Dispatch:    dispatchService,
		Workers:     workerService,
	}
	if dbClient != nil {
		deps.DB = dbClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		// hijacked session connections are not tracked by Shutdown; closing the broker ends them
		broker.Close()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return notifications.Run(gctx) })
	g.Go(func() error { return ignoreCanceled(cronService.Run(gctx)) })
	if consumer != nil {
		g.Go(func() error { return ignoreCanceled(consumer.Run(gctx)) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
