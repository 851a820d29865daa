package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/foodway/foodway-backend/pkg/config"
)

const DefaultDir = "pkg/migrate/migrations"

// Dialect maps the configured driver to the goose dialect name.
func Dialect(cfg config.DBConfig) string {
	if cfg.IsSQLite() {
		return "sqlite3"
	}
	return "postgres"
}

// Run executes a standard goose command that requires a DB connection.
func Run(ctx context.Context, db *sql.DB, dialect, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to targetVersion, which must exist in dir.
func MigrateToVersion(ctx context.Context, db *sql.DB, dialect, dir string, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	// 0 rolls everything back
	if target != 0 {
		files, err := ListFiles(dir)
		if err != nil {
			return err
		}
		if !hasVersion(files, target) {
			return fmt.Errorf("version %d not found in %s", target, dir)
		}
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// SchemaStatus compares the applied version with the migrations on disk.
type SchemaStatus struct {
	Current int64
	Latest  int64
	Pending []File
}

func (s SchemaStatus) UpToDate() bool {
	return len(s.Pending) == 0
}

// Status reports which migrations in dir are newer than the database version.
func Status(ctx context.Context, db *sql.DB, dialect, dir string) (SchemaStatus, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return SchemaStatus{}, fmt.Errorf("set goose dialect: %w", err)
	}
	files, err := ListFiles(dir)
	if err != nil {
		return SchemaStatus{}, err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("get db version: %w", err)
	}
	return pendingSince(current, files), nil
}

func pendingSince(current int64, files []File) SchemaStatus {
	status := SchemaStatus{Current: current}
	for _, f := range files {
		if f.Version > status.Latest {
			status.Latest = f.Version
		}
		if f.Version > current {
			status.Pending = append(status.Pending, f)
		}
	}
	return status
}
