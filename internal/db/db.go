// Package database owns the Postgres pool, the embedded schema migrations and
// the transaction helpers shared by every repository.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // Required for postgres driver registration
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
)

//go:embed migrations
var migrationFS embed.FS

const defaultRetries = 5

type DatabaseConfig struct {
	ConnectionURL string
}

// WaitForDB pings the pool with a linear backoff and reports whether it came up.
func WaitForDB(ctx context.Context, pgpool *pgxpool.Pool, logger *zap.Logger) bool {
	for attempts := 1; attempts <= defaultRetries; attempts++ {
		err := pgpool.Ping(ctx)
		if err == nil {
			logger.Info("Database connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.Warn("Database ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", defaultRetries),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		if attempts < defaultRetries {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(waitDuration):
			}
		}
	}
	logger.Error("Database connection failed after multiple retries")
	return false
}

// RunMigrations applies the embedded migrations up to the latest version.
func RunMigrations(databaseURL string, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	m, err := newMigrate(databaseURL, logger)
	if err != nil {
		return err
	}
	defer closeMigrate(m, logger)

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Failed to apply migrations", zap.Error(err))
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	noChange := errors.Is(err, migrate.ErrNoChange)

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		logger.Warn("Could not determine migration version", zap.Error(err))
	case dirty:
		logger.Error("DATABASE MIGRATION STATE IS DIRTY!", zap.Uint64("version", uint64(version)))
	case noChange:
		logger.Info("No new migrations to apply.", zap.Uint64("current_version", uint64(version)))
	default:
		logger.Info("Database migrations applied successfully.", zap.Uint64("new_version", uint64(version)))
	}

	return nil
}

// RollbackMigrations reverts the given number of migration steps.
func RollbackMigrations(databaseURL string, steps int, logger *zap.Logger) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	m, err := newMigrate(databaseURL, logger)
	if err != nil {
		return err
	}
	defer closeMigrate(m, logger)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Failed to roll back migrations", zap.Int("steps", steps), zap.Error(err))
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	logger.Info("Rolled back migrations", zap.Int("steps", steps))
	return nil
}

func newMigrate(databaseURL string, logger *zap.Logger) (*migrate.Migrate, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		logger.Error("Failed to read embedded migrations directory", zap.Error(err))
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}
	if len(entries) == 0 {
		logger.Warn("No migration files found in embedded migrations directory")
	}
	for _, entry := range entries {
		logger.Debug("Found embedded migration file", zap.String("name", entry.Name()))
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		logger.Error("Failed to create migration source driver", zap.Error(err))
		return nil, fmt.Errorf("failed to create migration source driver: %w", err)
	}

	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		errMsg := "invalid database URL scheme for migrate, ensure it starts with postgresql://"
		logger.Error(errMsg)
		return nil, errors.New(errMsg)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		logger.Error("Failed to initialize migrate instance", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize migrate instance: %w", err)
	}
	return m, nil
}

func closeMigrate(m *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("Error closing migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Error closing migration database connection", zap.Error(dbErr))
	}
}

// NewDatabaseConfig generates the database connection URL from configuration.
func NewDatabaseConfig(cfg *config.Config, logger *zap.Logger) (*DatabaseConfig, error) {
	if cfg == nil || cfg.Repositories.Postgres.Host == "" {
		errMsg := "Postgres configuration is missing or invalid"
		logger.Error(errMsg)
		return nil, errors.New(errMsg)
	}
	pg := cfg.Repositories.Postgres

	query := url.Values{}
	query.Set("sslmode", pg.SSLMode)
	query.Set("timezone", "utc")

	connURL := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(pg.Username, pg.Password),
		Host:     fmt.Sprintf("%s:%s", pg.Host, pg.Port),
		Path:     pg.DB,
		RawQuery: query.Encode(),
	}

	logger.Info("Database connection URL generated", zap.String("host", connURL.Host), zap.String("database", connURL.Path))

	return &DatabaseConfig{
		ConnectionURL: connURL.String(),
	}, nil
}

// PoolOptions tunes the pgx pool; zero values keep the pgx defaults.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// Init initializes the pgxpool connection pool.
func Init(connectionURL string, opts PoolOptions, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("Initializing database connection pool...")
	cfg, err := pgxpool.ParseConfig(connectionURL)
	if err != nil {
		logger.Error("Failed to parse database config", zap.Error(err))
		return nil, fmt.Errorf("failed parsing db config: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to create database connection pool", zap.Error(err))
		return nil, fmt.Errorf("failed creating db pool: %w", err)
	}

	logger.Info("Database connection pool initialized",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns))
	return pool, nil
}
