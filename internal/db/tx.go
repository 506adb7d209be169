package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/app/observability/metrics"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Querier is the statement surface shared by a pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool and by pgxmock pools.
type Pool interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// DB wraps a Pool with the transaction discipline used by every repository:
// one connection per logical operation, released on every exit path. DB is
// itself a Querier; each statement issued on it runs in its own transaction,
// so checkout is bounded by the acquire timeout there too.
type DB struct {
	pool           Pool
	logger         *zap.Logger
	acquireTimeout time.Duration
}

var _ Querier = (*DB)(nil)

func New(pool Pool, acquireTimeout time.Duration, logger *zap.Logger) *DB {
	return &DB{pool: pool, logger: logger, acquireTimeout: acquireTimeout}
}

func (d *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := d.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var err error
		tag, err = tx.Exec(ctx, sql, args...)
		return err
	})
	return tag, err
}

// Query keeps the transaction open until the returned rows are closed.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tx, err := d.begin(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		d.rollback(ctx, tx)
		return nil, err
	}
	return &txRows{Rows: rows, db: d, ctx: ctx, tx: tx}, nil
}

// QueryRow defers checkout to Scan, which reports a checkout failure the
// same way a failed query would.
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &txRow{db: d, ctx: ctx, sql: sql, args: args}
}

// ReadOnly runs fn in a read-only transaction. Statements inside it share one
// connection but, at READ COMMITTED, not one snapshot.
func (d *DB) ReadOnly(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return d.WithTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

// WithTx begins a transaction, runs fn and commits. Any error from fn, or a
// panic, rolls the whole transaction back.
func (d *DB) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) (err error) {
	start := time.Now()
	readOnly := attribute.Bool("read_only", opts.AccessMode == pgx.ReadOnly)
	defer func() {
		m := metrics.Get()
		m.DBQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(readOnly))
		if err != nil {
			m.DBQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(readOnly))
		}
	}()

	tx, err := d.begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			d.rollback(ctx, tx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		d.rollback(ctx, tx)
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		d.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", Classify(err))
	}
	return nil
}

func (d *DB) begin(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	beginCtx := ctx
	if d.acquireTimeout > 0 {
		var cancel context.CancelFunc
		beginCtx, cancel = context.WithTimeout(ctx, d.acquireTimeout)
		defer cancel()
	}
	tx, err := d.pool.BeginTx(beginCtx, opts)
	if err == nil {
		return tx, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	d.logger.Warn("Failed to acquire transaction connection", zap.Error(err))
	return nil, fmt.Errorf("%w: %w", models.ErrConnectionUnavailable, err)
}

func (d *DB) rollback(ctx context.Context, tx pgx.Tx) {
	metrics.Get().TxRollbacksTotal.Add(ctx, 1)
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		d.logger.Error("Failed to rollback transaction", zap.Error(err))
	}
}

type txRow struct {
	db   *DB
	ctx  context.Context
	sql  string
	args []any
}

func (r *txRow) Scan(dest ...any) error {
	return r.db.WithTx(r.ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	})
}

type txRows struct {
	pgx.Rows
	db     *DB
	ctx    context.Context
	tx     pgx.Tx
	closed bool
}

func (r *txRows) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.Rows.Close()
	if r.Rows.Err() != nil {
		r.db.rollback(r.ctx, r.tx)
		return
	}
	if err := r.tx.Commit(r.ctx); err != nil {
		r.db.logger.Error("Failed to commit transaction", zap.Error(err))
	}
}

// Classify maps a driver error onto the domain taxonomy while keeping the
// driver cause reachable through errors.As. Context errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrStorage), errors.Is(err, models.ErrConnectionUnavailable),
		errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrValidation):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %w", models.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %w", models.ErrConflict, err)
		case foreignKeyViolation:
			// a referenced parent is missing
			return fmt.Errorf("%w: %w", models.ErrNotFound, err)
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", models.ErrConnectionUnavailable, err)
	}
	return fmt.Errorf("%w: %w", models.ErrStorage, err)
}
