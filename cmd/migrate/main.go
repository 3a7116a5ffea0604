package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/restaurant-core/pkg/config"
	"github.com/angelmondragon/restaurant-core/pkg/db"
	"github.com/angelmondragon/restaurant-core/pkg/logger"
	"github.com/angelmondragon/restaurant-core/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations source directory (create, validate)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd})

	// offline commands work on the source tree and need no config
	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "missing -name for create", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name, time.Now())
		if err != nil {
			fail(ctx, logg, "failed to create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if cfg.DB.Driver == db.DriverSQLite {
		fail(ctx, logg, "sql migrations target postgres; sqlite schemas come from RESTO_AUTO_MIGRATE", nil)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "failed to bootstrap database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "failed to extract sql database", err)
	}
	m, err := migrate.New(sqlDB)
	if err != nil {
		fail(ctx, logg, "failed to build migrator", err)
	}

	var steps []migrate.Step
	switch *cmd {
	case "up":
		steps, err = m.Up(ctx)
	case "down":
		steps, err = m.Down(ctx)
	case "version":
		if *version == "" {
			fail(ctx, logg, "missing -version for version command", nil)
		}
		steps, err = m.MigrateTo(ctx, *version)
	case "status":
		var statuses map[int64]string
		statuses, err = m.Status(ctx)
		if err == nil {
			printStatus(statuses)
		}
	default:
		fail(ctx, logg, "unknown -cmd value "+*cmd, nil)
	}
	if err != nil {
		fail(ctx, logg, "migration failed", err)
	}
	for _, s := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":   s.Version,
			"direction": s.Direction,
			"path":      s.Path,
		}), "migration applied")
	}
	current, err := m.Version(ctx)
	if err != nil {
		fail(ctx, logg, "failed to read schema version", err)
	}
	logg.Info(logg.WithField(ctx, "version", current), "migrate done")
}

func printStatus(statuses map[int64]string) {
	versions := make([]int64, 0, len(statuses))
	for v := range statuses {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for _, v := range versions {
		fmt.Printf("%d\t%s\n", v, statuses[v])
	}
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
