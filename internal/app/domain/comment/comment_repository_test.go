package comment

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/handlers"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

const (
	userA    = int64(1)
	userB    = int64(2)
	location = int64(10)
	aggID    = int64(7)
)

var aggColumns = []string{"id", "total", "count", "location_id", "created_at", "updated_at"}

func newRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(database.New(mock, time.Second, zap.NewNop()), 40, zap.NewNop()), mock
}

func expectLockComment(mock pgxmock.PgxPoolIface, user int64, id int64, rank int32) {
	rows := pgxmock.NewRows([]string{"id", "rank"})
	if id != 0 {
		rows.AddRow(id, rank)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, rank FROM comments WHERE user_id = $1 AND location_id = $2 FOR UPDATE")).
		WithArgs(user, location).
		WillReturnRows(rows)
}

func expectLockAggregate(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM rank_aggregations WHERE location_id = $1 FOR UPDATE")).
		WithArgs(location).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(aggID))
}

func expectDelta(mock pgxmock.PgxPoolIface, delta, added, total, count int64) {
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE rank_aggregations SET total = total + $1, count = count + $2")).
		WithArgs(delta, added, aggID).
		WillReturnRows(pgxmock.NewRows(aggColumns).AddRow(aggID, total, count, location, now, now))
}

func expectInsertIfAbsent(mock pgxmock.PgxPoolIface, user int64, rank int32, content string, id int64) {
	rows := pgxmock.NewRows([]string{"id"})
	if id != 0 {
		rows.AddRow(id)
	}
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (user_id, location_id) DO NOTHING RETURNING id")).
		WithArgs(rank, content, user, location).
		WillReturnRows(rows)
}

func TestUpsertScenario(t *testing.T) {
	ctx := context.Background()
	repo, mock := newRepo(t)

	// A rates 4 on an empty location.
	mock.ExpectBegin()
	expectLockComment(mock, userA, 0, 0)
	expectInsertIfAbsent(mock, userA, 4, "lovely", 100)
	expectLockAggregate(mock)
	expectDelta(mock, 4, 1, 4, 1)
	mock.ExpectCommit()

	res, err := repo.Upsert(ctx, userA, location, models.CommentRequest{Rank: 4, Content: "lovely"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(100), res.CommentID)
	assert.Equal(t, int64(4), res.Aggregate.Total)
	assert.Equal(t, int64(1), res.Aggregate.Count)

	// B rates 2.
	mock.ExpectBegin()
	expectLockComment(mock, userB, 0, 0)
	expectInsertIfAbsent(mock, userB, 2, "crowded", 101)
	expectLockAggregate(mock)
	expectDelta(mock, 2, 1, 6, 2)
	mock.ExpectCommit()

	res, err = repo.Upsert(ctx, userB, location, models.CommentRequest{Rank: 2, Content: "crowded"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Aggregate.Total)
	assert.Equal(t, int64(2), res.Aggregate.Count)

	// A revises to 1: the delta replaces the old rank and count is unchanged.
	mock.ExpectBegin()
	expectLockComment(mock, userA, 100, 4)
	expectLockAggregate(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE comments SET rank = $1, content = $2, updated_at = NOW() WHERE id = $3")).
		WithArgs(int32(1), "changed my mind", int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectDelta(mock, -3, 0, 3, 2)
	mock.ExpectCommit()

	res, err = repo.Upsert(ctx, userA, location, models.CommentRequest{Rank: 1, Content: "changed my mind"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(3), res.Aggregate.Total)
	assert.Equal(t, int64(2), res.Aggregate.Count)
	assert.Equal(t, 1.5, res.Aggregate.Average())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertLosesInsertRace(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	expectLockComment(mock, userA, 0, 0)
	expectInsertIfAbsent(mock, userA, 5, "", 0)
	expectLockComment(mock, userA, 100, 3)
	expectLockAggregate(mock)
	mock.ExpectExec("UPDATE comments SET rank").
		WithArgs(int32(5), "", int64(100)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectDelta(mock, 2, 0, 5, 1)
	mock.ExpectCommit()

	res, err := repo.Upsert(context.Background(), userA, location, models.CommentRequest{Rank: 5})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, int64(1), res.Aggregate.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBack(t *testing.T) {
	t.Run("missing aggregate", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		expectLockComment(mock, userA, 0, 0)
		expectInsertIfAbsent(mock, userA, 4, "", 100)
		mock.ExpectQuery("FROM rank_aggregations WHERE location_id").
			WithArgs(location).
			WillReturnRows(pgxmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.Upsert(context.Background(), userA, location, models.CommentRequest{Rank: 4})
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delta write fails", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		expectLockComment(mock, userA, 100, 4)
		expectLockAggregate(mock)
		mock.ExpectExec("UPDATE comments SET rank").
			WithArgs(int32(2), "", int64(100)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery("UPDATE rank_aggregations").
			WithArgs(int64(-2), int64(0), aggID).
			WillReturnError(errors.New("connection reset by peer"))
		mock.ExpectRollback()

		_, err := repo.Upsert(context.Background(), userA, location, models.CommentRequest{Rank: 2})
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pool exhausted", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin().WillReturnError(errors.New("acquire timeout"))

		_, err := repo.Upsert(context.Background(), userA, location, models.CommentRequest{Rank: 2})
		assert.ErrorIs(t, err, models.ErrConnectionUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreate(t *testing.T) {
	t.Run("adds rank to aggregate", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comments (rank, content, user_id, location_id) VALUES ($1, $2, $3, $4) RETURNING id")).
			WithArgs(int32(3), "ok", userA, location).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(55)))
		expectLockAggregate(mock)
		expectDelta(mock, 3, 1, 3, 1)
		mock.ExpectCommit()

		res, err := repo.Create(context.Background(), userA, location, models.CommentRequest{Rank: 3, Content: "ok"})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, int64(55), res.CommentID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO comments (rank, content, user_id, location_id) VALUES ($1, $2, $3, $4) RETURNING id")).
			WithArgs(int32(3), "again", userA, location).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "comments_user_location_key"})
		mock.ExpectRollback()

		_, err := repo.Create(context.Background(), userA, location, models.CommentRequest{Rank: 3, Content: "again"})
		assert.ErrorIs(t, err, models.ErrConflict)
		var pgErr *pgconn.PgError
		assert.True(t, errors.As(err, &pgErr))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListOfLocation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	gt := int32(3)

	t.Run("count and page share the predicate", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comments WHERE (location_id = $1 AND rank > $2)")).
			WithArgs(location, gt).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mock.ExpectQuery(regexp.QuoteMeta("FROM comments WHERE (location_id = $1 AND rank > $2) ORDER BY updated_at DESC, id DESC LIMIT 40 OFFSET 0")).
			WithArgs(location, gt).
			WillReturnRows(pgxmock.NewRows(commentColumns).
				AddRow(int64(2), int32(5), "b", userB, location, now, now).
				AddRow(int64(1), int32(4), "a", userA, location, now, now))
		mock.ExpectCommit()

		list, total, err := repo.ListOfLocation(ctx, models.CommentFilter{LocationID: location, RankGT: &gt, Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, list, 2)
		assert.Equal(t, int32(5), list[0].Rank)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("offset past total skips the page", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM comments WHERE (location_id = $1)")).
			WithArgs(location).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mock.ExpectCommit()

		list, total, err := repo.ListOfLocation(ctx, models.CommentFilter{LocationID: location, Limit: 10, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.NotNil(t, list)
		assert.Empty(t, list)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMine(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(regexp.QuoteMeta("FROM comments WHERE location_id = $1 AND user_id = $2")).
		WithArgs(location, userA).
		WillReturnRows(pgxmock.NewRows(commentColumns))
	mock.ExpectCommit()

	c, err := repo.Mine(context.Background(), userA, location)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("FROM rank_aggregations WHERE location_id").
		WithArgs(location).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Aggregate(context.Background(), location)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// exhaustedPool never hands out a connection before the caller gives up.
type exhaustedPool struct{ database.Querier }

func (exhaustedPool) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReadsFailFastWhenPoolIsExhausted(t *testing.T) {
	repo := NewPostgresRepository(database.New(exhaustedPool{}, 20*time.Millisecond, zap.NewNop()), 40, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reads := map[string]func() error{
		"mine": func() error {
			_, err := repo.Mine(ctx, userA, location)
			return err
		},
		"aggregate": func() error {
			_, err := repo.Aggregate(ctx, location)
			return err
		},
		"list": func() error {
			_, _, err := repo.ListOfLocation(ctx, models.CommentFilter{LocationID: location, Limit: 10})
			return err
		},
	}
	for name, read := range reads {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			err := read()
			assert.ErrorIs(t, err, models.ErrConnectionUnavailable)
			assert.Equal(t, http.StatusServiceUnavailable, handlers.StatusOf(err))
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}
