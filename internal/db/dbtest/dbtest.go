//go:build integration

// Package dbtest starts a throwaway Postgres with the schema applied, for
// tests built with the integration tag.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

const image = "postgres:16-alpine"

// Start runs a migrated Postgres container for the lifetime of t.
func Start(t *testing.T) (*database.DB, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("withbaby"),
		postgres.WithUsername("withbaby"),
		postgres.WithPassword("withbaby"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(url, logger))

	pool, err := database.Init(url, database.PoolOptions{MaxConns: 20}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return database.New(pool, 5*time.Second, logger), pool
}

// User inserts a user and returns its id.
func User(t *testing.T, pool *pgxpool.Pool, phone string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (name, phone, password, salt) VALUES ($1, $1, 'x', 'x') RETURNING id`, phone,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// Location inserts a location with an empty rank aggregate and returns its id.
func Location(t *testing.T, pool *pgxpool.Pool, discoverer int64, name string, lat, lon float64) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := pool.QueryRow(ctx,
		`INSERT INTO locations (name, latitude, longitude, discoverer_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, lat, lon, discoverer,
	).Scan(&id)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO rank_aggregations (location_id) VALUES ($1)`, id)
	require.NoError(t, err)
	return id
}
