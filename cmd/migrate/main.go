package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/db"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (default: embedded set; "+migrate.SourceDir+" for create/validate)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	// create and validate only touch the filesystem, so they run without config.
	if out, handled, err := runOffline(opts); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
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
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to open sql handle", err)
		os.Exit(1)
	}

	runner, err := migrate.NewRunner(sqlDB, opts.fsys(), logg)
	if err != nil {
		logg.Error(ctx, "failed to build migration runner", err)
		os.Exit(1)
	}
	if err := runOnline(ctx, runner, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		dbClient.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migrate completed")
}

// sourceDir is where create and validate work: the checked-in SQL files.
func (o options) sourceDir() string {
	if o.dir == "" {
		return migrate.SourceDir
	}
	return o.dir
}

// fsys is what online commands apply. Without -dir the binary's embedded
// migrations are used, so the CLI runs from any working directory.
func (o options) fsys() fs.FS {
	if o.dir == "" {
		return migrate.Migrations()
	}
	return os.DirFS(o.dir)
}

func runOffline(opts options) (string, bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return "", true, errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.sourceDir(), opts.name)
		if err != nil {
			return "", true, err
		}
		return "created migration: " + path, true, nil
	case "validate":
		if err := migrate.ValidateDir(opts.sourceDir()); err != nil {
			return "", true, err
		}
		return "migration validation passed", true, nil
	}
	return "", false, nil
}

type migrationRunner interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) ([]migrate.Status, error)
	MigrateTo(ctx context.Context, target int64) error
}

func runOnline(ctx context.Context, runner migrationRunner, opts options) error {
	switch opts.cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		rows, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			applied := "pending"
			if row.Applied {
				applied = row.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%d\t%-25s\t%s\n", row.Version, applied, row.File)
		}
		return nil
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		target, err := migrate.ParseVersion(opts.version)
		if err != nil {
			return err
		}
		return runner.MigrateTo(ctx, target)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
