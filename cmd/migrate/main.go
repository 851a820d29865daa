package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/foodway/foodway-backend/pkg/config"
	"github.com/foodway/foodway-backend/pkg/db"
	"github.com/foodway/foodway-backend/pkg/logger"
	"github.com/foodway/foodway-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
	dialect string
}

type command struct {
	help string
	// needsDB commands get a live connection; the rest work on the directory alone.
	needsDB bool
	run     func(ctx context.Context, sqlDB *sql.DB, opts options) error
}

var errSchemaBehind = errors.New("schema is behind the migrations directory")

var commands = map[string]command{
	"up": {help: "apply all pending migrations", needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, o options) error {
		return migrate.Run(ctx, sqlDB, o.dialect, o.dir, "up")
	}},
	"down": {help: "roll back the latest migration", needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, o options) error {
		return migrate.Run(ctx, sqlDB, o.dialect, o.dir, "down")
	}},
	"status": {help: "print goose status", needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, o options) error {
		return migrate.Run(ctx, sqlDB, o.dialect, o.dir, "status")
	}},
	"version": {help: "migrate up or down to -version", needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, o options) error {
		if o.version == "" {
			return errors.New("missing -version")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, o.dialect, o.dir, o.version)
	}},
	"check": {help: "exit non-zero when migrations are pending (deploy gate)", needsDB: true, run: func(ctx context.Context, sqlDB *sql.DB, o options) error {
		status, err := migrate.Status(ctx, sqlDB, o.dialect, o.dir)
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d, latest %d, pending %d\n", status.Current, status.Latest, len(status.Pending))
		for _, f := range status.Pending {
			fmt.Printf("  pending %d_%s\n", f.Version, f.Name)
		}
		if !status.UpToDate() {
			return errSchemaBehind
		}
		return nil
	}},
	"create": {help: "scaffold -name as a new SQL migration", run: func(_ context.Context, _ *sql.DB, o options) error {
		if o.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(o.dir, o.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	}},
	"validate": {help: "check filenames and goose markers", run: func(_ context.Context, _ *sql.DB, o options) error {
		latest, err := migrate.LatestVersion(o.dir)
		if err != nil {
			return err
		}
		fmt.Printf("migration validation passed, latest version %d\n", latest)
		return nil
	}},
}

func main() {
	_ = godotenv.Load()

	cmdName := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Usage = usage
	flag.Parse()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd value %q\n\n", *cmdName)
		usage()
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	opts.dialect = migrate.Dialect(cfg.DB)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"cmd":     *cmdName,
		"dir":     opts.dir,
		"dialect": opts.dialect,
	})

	if err := execute(ctx, cfg, logg, cmd, opts); err != nil {
		if errors.Is(err, errSchemaBehind) {
			logg.Warn(ctx, "migrate.schema_behind")
		} else {
			logg.Error(ctx, "migrate.failed", err)
		}
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", *cmdName, err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func execute(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd command, opts options) error {
	if !cmd.needsDB {
		return cmd.run(ctx, nil, opts)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	return cmd.run(ctx, sqlDB, opts)
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate -cmd=<command> [-dir=...] [-name=...] [-version=...]\n\ncommands:\n")
	for _, name := range commandNames() {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-9s %s\n", name, commands[name].help)
	}
	fmt.Fprintln(flag.CommandLine.Output())
	flag.PrintDefaults()
}
