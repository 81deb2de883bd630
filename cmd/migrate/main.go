// Command migrate applies the research_runs schema migrations.
//
//	migrate -up
//	migrate -steps -1
//	migrate -version
//	migrate -force 1 -path ./migrations
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/app"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/database"
	"github.com/helixir/research-agent-service/internal/observability"
)

// action is one migration command selected on the command line.
type action struct {
	name string
	run  func(m *database.Migrator, logger zerolog.Logger) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		up      = flag.Bool("up", false, "Apply all pending migrations")
		down    = flag.Bool("down", false, "Roll back every migration")
		steps   = flag.Int("steps", 0, "Apply N steps; negative rolls back")
		version = flag.Bool("version", false, "Print the applied version")
		force   = flag.Int("force", -1, "Mark version V as applied without running it")
		path    = flag.String("path", "", "Migrations directory (defaults to database.migration_path)")
	)
	flag.Parse()

	var selected []action
	if *up {
		selected = append(selected, action{"up", func(m *database.Migrator, _ zerolog.Logger) error { return m.Up() }})
	}
	if *down {
		selected = append(selected, action{"down", func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Warn().Msg("rolling back every migration")
			return m.Down()
		}})
	}
	if *steps != 0 {
		n := *steps
		selected = append(selected, action{"steps", func(m *database.Migrator, _ zerolog.Logger) error { return m.Steps(n) }})
	}
	if *version {
		selected = append(selected, action{"version", func(*database.Migrator, zerolog.Logger) error { return nil }})
	}
	if *force >= 0 {
		v := *force
		selected = append(selected, action{"force", func(m *database.Migrator, logger zerolog.Logger) error {
			logger.Warn().Int("version", v).Msg("forcing migration version")
			return m.Force(v)
		}})
	}

	switch len(selected) {
	case 0:
		flag.Usage()
		return errors.New("one of -up, -down, -steps, -version or -force is required")
	case 1:
	default:
		return errors.New("only one action may be given")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Database.Enabled {
		return errors.New("database is disabled; set RESEARCH_DATABASE_ENABLED=true")
	}

	logCfg := app.LoggingConfig(cfg.Logging)
	logCfg.Format = "console"
	logger := observability.NewLogger(logCfg).With().Str("component", "migrate").Logger()

	dir := cfg.Database.MigrationPath
	if *path != "" {
		dir = *path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, dir, logger)
	if err != nil {
		return fmt.Errorf("open migrations in %s: %w", dir, err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close migrator")
		}
	}()

	act := selected[0]
	logger.Info().Str("action", act.name).Str("dir", dir).Msg("running migration")
	if err := act.run(migrator, logger); err != nil {
		return fmt.Errorf("migrate %s: %w", act.name, err)
	}
	return reportVersion(migrator, logger)
}

func reportVersion(m *database.Migrator, logger zerolog.Logger) error {
	info, err := m.Version()
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if info.None {
		logger.Info().Msg("no migrations applied")
		return nil
	}
	logger.Info().Uint("version", info.Version).Bool("dirty", info.Dirty).Msg("schema version")
	return nil
}
