package migrate

import (
	"context"
	"fmt"

	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/db"
	"github.com/foodway/foodway-backend/pkg/db/models"
	"github.com/foodway/foodway-backend/pkg/logger"
)

// MaybeRunDev migrates the schema when running in dev with auto-migrate enabled.
// Postgres runs the goose SQL files; sqlite gets the gorm models since the SQL is postgres-flavored.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.DB.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "db_driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "running gorm auto-migrate (sqlite dev mode)")
		if err := client.DB().WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, Dialect(cfg.DB), DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// WarnIfBehind logs the pending migrations when a postgres schema lags the binary.
// The API keeps serving; the deploy pipeline runs cmd/migrate -cmd=check to block rollouts.
func WarnIfBehind(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) {
	if cfg.DB.IsSQLite() {
		return
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "migrate.status_unavailable", err)
		return
	}
	status, err := Status(ctx, sqlDB, Dialect(cfg.DB), DefaultDir)
	if err != nil {
		logg.Error(ctx, "migrate.status_unavailable", err)
		return
	}
	if status.UpToDate() {
		return
	}
	names := make([]string, 0, len(status.Pending))
	for _, f := range status.Pending {
		names = append(names, fmt.Sprintf("%d_%s", f.Version, f.Name))
	}
	logg.Warn(logg.WithFields(ctx, map[string]any{
		"schema_version": status.Current,
		"latest_version": status.Latest,
		"pending":        names,
	}), "migrate.schema_behind")
}

// Models lists the gorm models backing the goose schema.
func Models() []any {
	return []any{
		&models.DeliveryAssignment{},
		&models.WorkerDeliveryCounter{},
	}
}
