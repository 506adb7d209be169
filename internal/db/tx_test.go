package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock, 0, zap.NewNop()), mock
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE rank_aggregations").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE rank_aggregations SET total = 1")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.WithTx(ctx, pgx.TxOptions{}, func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and repanics", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.WithTx(ctx, pgx.TxOptions{}, func(pgx.Tx) error { panic("kaboom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is connection unavailable", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		err := db.WithTx(ctx, pgx.TxOptions{}, func(pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, models.ErrConnectionUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("read only options are passed through", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
		mock.ExpectCommit()

		err := db.ReadOnly(ctx, func(pgx.Tx) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"missing parent", &pgconn.PgError{Code: "23503"}, models.ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, models.ErrStorage},
		{"plain error", errors.New("broken pipe"), models.ErrStorage},
		{"already classified", models.ErrForbidden, models.ErrForbidden},
		{"cancellation", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}

	assert.NoError(t, Classify(nil))
	assert.NotErrorIs(t, Classify(context.Canceled), models.ErrStorage)
}

// exhaustedPool never hands out a connection before the caller gives up.
type exhaustedPool struct{ Querier }

func (exhaustedPool) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStatementsOnDB(t *testing.T) {
	ctx := context.Background()

	t.Run("query row runs in its own transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT fetch_code FROM uploads").
			WithArgs(int64(4)).
			WillReturnRows(pgxmock.NewRows([]string{"fetch_code"}).AddRow("c4"))
		mock.ExpectCommit()

		var code string
		require.NoError(t, db.QueryRow(ctx, "SELECT fetch_code FROM uploads WHERE id = $1", int64(4)).Scan(&code))
		assert.Equal(t, "c4", code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query row without a match rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT fetch_code FROM uploads").
			WithArgs(int64(5)).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		var code string
		err := db.QueryRow(ctx, "SELECT fetch_code FROM uploads WHERE id = $1", int64(5)).Scan(&code)
		assert.ErrorIs(t, Classify(err), models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query commits once rows are closed", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id FROM uploads").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))
		mock.ExpectCommit()

		rows, err := db.Query(ctx, "SELECT id FROM uploads")
		require.NoError(t, err)
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM uploads").
			WithArgs(int64(9)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		tag, err := db.Exec(ctx, "DELETE FROM uploads WHERE id = $1", int64(9))
		require.NoError(t, err)
		assert.Equal(t, int64(1), tag.RowsAffected())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckoutTimeoutIsConnectionUnavailable(t *testing.T) {
	db := New(exhaustedPool{}, 20*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	statements := map[string]func() error{
		"query row": func() error {
			var id int64
			return db.QueryRow(ctx, "SELECT 1").Scan(&id)
		},
		"query": func() error {
			_, err := db.Query(ctx, "SELECT 1")
			return err
		},
		"exec": func() error {
			_, err := db.Exec(ctx, "SELECT 1")
			return err
		},
		"read only": func() error {
			return db.ReadOnly(ctx, func(pgx.Tx) error { return nil })
		},
	}
	for name, run := range statements {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			err := run()
			assert.ErrorIs(t, err, models.ErrConnectionUnavailable)
			assert.ErrorIs(t, Classify(err), models.ErrConnectionUnavailable)
			assert.Less(t, time.Since(start), time.Second)
		})
	}

	t.Run("caller cancellation passes through", func(t *testing.T) {
		cancelled, stop := context.WithCancel(context.Background())
		stop()
		err := New(exhaustedPool{}, time.Second, zap.NewNop()).ReadOnly(cancelled, func(pgx.Tx) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, models.ErrConnectionUnavailable)
	})
}
