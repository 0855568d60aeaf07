// Package migration applies the gateway store schema using golang-migrate.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"

	// file:// migration source
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/stackflow-io/stackflow/pkg/observability"
)

// Config holds migration settings
type Config struct {
	// SourceURL locates the migration files, e.g. "file://migrations"
	SourceURL string
	// Timeout bounds a single Up/Down run
	Timeout time.Duration
}

// Manager runs schema migrations against the gateway store
type Manager struct {
	db     *sqlx.DB
	config Config
	logger observability.Logger
}

// NewManager creates a migration manager
func NewManager(db *sqlx.DB, config Config, logger observability.Logger) (*Manager, error) {
	if db == nil {
		return nil, errors.New("db connection cannot be nil")
	}
	if config.SourceURL == "" {
		config.SourceURL = "file://migrations"
	}
	if config.Timeout == 0 {
		config.Timeout = time.Minute
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Manager{db: db, config: config, logger: logger}, nil
}

// Up applies all pending migrations
func (m *Manager) Up(ctx context.Context) error {
	migrator, err := m.migrator()
	if err != nil {
		return err
	}
	defer m.close(migrator)

	done := make(chan error, 1)
	go func() { done <- migrator.Up() }()

	timeout := time.NewTimer(m.config.Timeout)
	defer timeout.Stop()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		version, dirty, _ := migrator.Version()
		m.logger.Info("migrations applied", map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		})
		return nil
	case <-timeout.C:
		return fmt.Errorf("migration up timed out after %s", m.config.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Version reports the current schema version
func (m *Manager) Version() (uint, bool, error) {
	migrator, err := m.migrator()
	if err != nil {
		return 0, false, err
	}
	defer m.close(migrator)

	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *Manager) migrator() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(m.db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres migration driver: %w", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance(m.config.SourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return migrator, nil
}

func (m *Manager) close(migrator *migrate.Migrate) {
	sourceErr, dbErr := migrator.Close()
	if sourceErr != nil {
		m.logger.Warn("failed to close migration source", map[string]interface{}{"error": sourceErr.Error()})
	}
	if dbErr != nil {
		m.logger.Warn("failed to close migration db", map[string]interface{}{"error": dbErr.Error()})
	}
}
