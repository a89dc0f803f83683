// Package database owns the gorm connection and schema migrations.
package database

import (
	"fmt"
	"time"

	"tradewarden/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool sizing. The trade pipeline serializes per agent, so open-connection
// pressure tracks concurrent agents rather than request volume.
const (
	maxIdleConns    = 10
	maxOpenConns    = 50
	connMaxLifetime = time.Hour
)

// Manager owns the database handle for the lifetime of the process.
type Manager struct {
	db     *gorm.DB
	config *Config
}

// NewManager opens the connection and configures the pool.
func NewManager(config *Config) (*Manager, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return &Manager{db: db, config: config}, nil
}

// RunMigrations applies pending SQL migrations from migrations/.
func (m *Manager) RunMigrations() error {
	mig, err := migrate.New("file://migrations", m.config.URL())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer closeMigrator(mig)

	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Get().Info("database schema is up to date")
	return nil
}

// DB returns the shared gorm handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

func closeMigrator(mig *migrate.Migrate) {
	srcErr, dbErr := mig.Close()
	if srcErr != nil {
		logger.Get().Warnw("migrator source close failed", "error", srcErr)
	}
	if dbErr != nil {
		logger.Get().Warnw("migrator database close failed", "error", dbErr)
	}
}
