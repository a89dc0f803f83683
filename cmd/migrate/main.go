// Command migrate manages the database schema from the command line.
//
//	migrate up          apply all pending migrations
//	migrate down [N]    roll back N migrations (default 1)
//	migrate version     print the current schema version
package main

import (
	"fmt"
	"os"
	"strconv"

	"tradewarden/internal/database"
	"tradewarden/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("migrate: %v", err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate <up|down|version> [N]")
	}

	cfg, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("load database config: %w", err)
	}

	m, err := migrate.New("file://migrations", cfg.URL())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Get().Warnw("migrator close failed", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("up: %w", err)
		}
		logger.Get().Info("migrations applied")

	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid step count %q: %w", args[1], err)
			}
		}
		if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("down: %w", err)
		}
		logger.Get().Infof("rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		logger.Get().Infof("schema version %d (dirty=%v)", version, dirty)

	default:
		return fmt.Errorf("unknown command %q (use up, down, or version)", args[0])
	}

	return nil
}
