package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	database "github.com/FACorreiaa/go-withbaby/internal/db"
	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	dbPool *pgxpool.Pool
	db     *database.DB
	router http.Handler
}

// New connects to Postgres, applies pending migrations and returns a Server
// ready for SetRouter.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	dbPool, err := s.setupDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	s.dbPool = dbPool
	s.db = database.New(dbPool, cfg.Repositories.Postgres.AcquireTimeout, logger)

	return s, nil
}

// setupDatabase initializes the database connection and runs migrations
func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")

	dbConfig, err := database.NewDatabaseConfig(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database configuration: %w", err)
	}

	pg := s.cfg.Repositories.Postgres
	pool, err := database.Init(dbConfig.ConnectionURL, database.PoolOptions{MaxConns: pg.MaxConns, MinConns: pg.MinConns}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	if !database.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return nil, fmt.Errorf("database at %s:%s is unreachable", pg.Host, pg.Port)
	}
	s.logger.Info("Connected to Postgres",
		zap.String("host", pg.Host),
		zap.String("port", pg.Port),
		zap.String("database", pg.DB))

	if err = database.RunMigrations(dbConfig.ConnectionURL, s.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.logger.Info("Database setup completed successfully")
	return pool, nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

func (s *Server) DB() *database.DB {
	return s.db
}

func (s *Server) Pool() *pgxpool.Pool {
	return s.dbPool
}

// Close closes all server resources
func (s *Server) Close() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
