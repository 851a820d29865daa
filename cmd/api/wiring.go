package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodway/foodway-backend/internal/assignments"
	"github.com/foodway/foodway-backend/internal/cron"
	"github.com/foodway/foodway-backend/internal/dispatch"
	"github.com/foodway/foodway-backend/internal/intake"
	"github.com/foodway/foodway-backend/internal/notify"
	"github.com/foodway/foodway-backend/internal/otp"
	"github.com/foodway/foodway-backend/internal/workers"
	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/db"
	"github.com/foodway/foodway-backend/pkg/idempotency"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/metrics"
	"github.com/foodway/foodway-backend/pkg/migrate"
	"github.com/foodway/foodway-backend/pkg/pubsub"
	"github.com/foodway/foodway-backend/pkg/redis"
)

// buildAssignmentStore returns the registry store and, for the sql driver, the db client backing it.
func buildAssignmentStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (assignments.Store, *db.Client, error) {
	switch strings.ToLower(cfg.Dispatch.StoreDriver) {
	case config.StoreDriverMemory:
		logg.Warn(ctx, "assignment registry is in memory; state is lost on restart")
		return assignments.NewMemoryStore(), nil, nil
	case config.StoreDriverSQL, "":
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			_ = dbClient.Close()
			return nil, nil, fmt.Errorf("running dev migrations: %w", err)
		}
		migrate.WarnIfBehind(ctx, cfg, logg, dbClient)
		return assignments.NewRepository(dbClient.DB()), dbClient, nil
	default:
		return nil, nil, fmt.Errorf("unknown assignment store %q", cfg.Dispatch.StoreDriver)
	}
}

func buildOTPStore(cfg *config.Config, client *redis.Client) (otp.Store, error) {
	switch strings.ToLower(cfg.OTP.StoreDriver) {
	case config.StoreDriverMemory:
		return otp.NewMemoryStore(), nil
	case config.StoreDriverRedis, "":
		return otp.NewRedisStore(client, cfg.OTP.RedisWatchRetry)
	default:
		return nil, fmt.Errorf("unknown otp store %q", cfg.OTP.StoreDriver)
	}
}

func buildRoster(cfg *config.Config, client *redis.Client) (workers.Roster, error) {
	switch strings.ToLower(cfg.Dispatch.DutyStoreDriver) {
	case config.StoreDriverMemory:
		return workers.NewMemoryRoster(), nil
	case config.StoreDriverRedis, "":
		return workers.NewRedisRoster(client, cfg.Dispatch.DutyTTL)
	default:
		return nil, fmt.Errorf("unknown duty store %q", cfg.Dispatch.DutyStoreDriver)
	}
}

// buildNotifier fans out over every configured channel. The log channel is always present so
// dev environments without SMTP or Telegram still see outgoing messages.
func buildNotifier(cfg *config.Config, logg *logger.Logger, m *metrics.DispatchMetrics) (notify.Notifier, error) {
	channels := []notify.Channel{}
	if cfg.Mail.Enabled() {
		mail, err := notify.NewSMTPChannel(cfg.Mail)
		if err != nil {
			return nil, fmt.Errorf("smtp channel: %w", err)
		}
		channels = append(channels, mail)
	}
	if cfg.Telegram.Enabled() {
		bot, err := notify.NewTelegramChannel(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		channels = append(channels, bot)
	}
	if len(channels) == 0 || cfg.App.IsDev() {
		channels = append(channels, notify.NewLogChannel(logg))
	}
	return notify.NewMulti(m, channels...), nil
}

type staleExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// buildCron registers the maintenance jobs. Every API instance runs the loop; the redis lock
// lets one of them execute each job per schedule tick. An in-memory registry cannot be shared
// across instances, so it gets a process-local lock.
func buildCron(cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer, client *redis.Client, expirer staleExpirer, issuer *otp.Issuer) (*cron.Service, error) {
	expiry, err := cron.NewAssignmentExpiryJob(logg, expirer)
	if err != nil {
		return nil, err
	}
	sweep, err := cron.NewOTPSweepJob(logg, issuer)
	if err != nil {
		return nil, err
	}
	jobs := cron.NewRegistry()
	if err := jobs.Register(expiry, cfg.Cron.AssignmentSchedule); err != nil {
		return nil, err
	}
	if err := jobs.Register(sweep, cfg.Cron.OTPSweepSchedule); err != nil {
		return nil, err
	}
	var lock cron.Lock = cron.NewLocalLock()
	if !strings.EqualFold(cfg.Dispatch.StoreDriver, config.StoreDriverMemory) {
		redisLock, err := cron.NewRedisLock(client, cfg.Cron.LockTTL)
		if err != nil {
			return nil, err
		}
		lock = redisLock
	}
	return cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   jobs,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
}

// buildIntake returns a nil consumer when Pub/Sub intake is disabled.
func buildIntake(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *redis.Client, orders dispatch.Service) (*intake.Consumer, func(), error) {
	noop := func() {}
	if !cfg.PubSub.Enabled {
		logg.Info(ctx, "pubsub intake disabled")
		return nil, noop, nil
	}
	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, noop, err
	}
	closeClient := func() {
		if err := psClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}
	manager, err := idempotency.NewManager(client, cfg.Eventing.IdempotencyTTL, 2*cfg.PubSub.HandlerTimeout)
	if err != nil {
		closeClient()
		return nil, noop, err
	}
	consumer, err := intake.NewConsumer(orders, psClient.OrdersSubscription(), manager, logg, cfg.PubSub.HandlerTimeout)
	if err != nil {
		closeClient()
		return nil, noop, err
	}
	return consumer, closeClient, nil
}
