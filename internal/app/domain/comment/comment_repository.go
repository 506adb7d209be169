package comment

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ Repository = (*PostgresRepository)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var commentColumns = []string{"id", "rank", "content", "user_id", "location_id", "created_at", "updated_at"}

const (
	selectOwnCommentForUpdate = `SELECT id, rank FROM comments WHERE user_id = $1 AND location_id = $2 FOR UPDATE`
	insertCommentIfAbsent     = `INSERT INTO comments (rank, content, user_id, location_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, location_id) DO NOTHING RETURNING id`
	insertComment = `INSERT INTO comments (rank, content, user_id, location_id) VALUES ($1, $2, $3, $4) RETURNING id`
	updateComment = `UPDATE comments SET rank = $1, content = $2, updated_at = NOW() WHERE id = $3`

	selectAggregateForUpdate = `SELECT id FROM rank_aggregations WHERE location_id = $1 FOR UPDATE`
	applyAggregateDelta      = `UPDATE rank_aggregations SET total = total + $1, count = count + $2, updated_at = NOW()
		WHERE id = $3 RETURNING id, total, count, location_id, created_at, updated_at`
	selectAggregate = `SELECT id, total, count, location_id, created_at, updated_at FROM rank_aggregations WHERE location_id = $1`
)

// Repository persists comments and keeps the per-location rank aggregate in
// step with them.
type Repository interface {
	// ListOfLocation returns one page of comments of a location and the
	// number of comments matching the same predicate.
	ListOfLocation(ctx context.Context, f models.CommentFilter) ([]models.Comment, int64, error)
	// Mine returns the caller's comment on a location, or nil.
	Mine(ctx context.Context, userID, locationID int64) (*models.Comment, error)
	// Create inserts a new comment. A second comment by the same user on the
	// same location is a conflict.
	Create(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error)
	// Upsert creates or replaces the caller's comment.
	Upsert(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error)
	Aggregate(ctx context.Context, locationID int64) (*models.RankAggregate, error)
}

type PostgresRepository struct {
	db      *database.DB
	maxPage int
	logger  *zap.Logger
}

func NewPostgresRepository(db *database.DB, maxPage int, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, maxPage: maxPage, logger: logger}
}

// Upsert runs the rank aggregation transaction. The caller's comment row is
// locked first, then the aggregate row of the location, then the delta is
// applied to both. Concurrent upserts by the same user serialise on the
// comment row; writers to the same location serialise on the aggregate row.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error) {
	ctx, span := otel.Tracer("CommentRepository").Start(ctx, "CommentRepository.Upsert", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("user.id", userID),
		attribute.Int64("location.id", locationID),
	))
	defer span.End()
	l := r.logger.With(zap.String("method", "Upsert"), zap.Int64("userID", userID), zap.Int64("locationID", locationID))

	var res models.UpsertResult
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		res = models.UpsertResult{}

		id, oldRank, found, err := lockOwnComment(ctx, tx, userID, locationID)
		if err != nil {
			return err
		}
		if !found {
			err = tx.QueryRow(ctx, insertCommentIfAbsent, req.Rank, req.Content, userID, locationID).Scan(&id)
			switch {
			case err == nil:
				res.Created = true
			case errors.Is(err, pgx.ErrNoRows):
				// A concurrent upsert inserted the row first. Its transaction
				// has committed, so the row is visible to a fresh statement.
				if id, oldRank, found, err = lockOwnComment(ctx, tx, userID, locationID); err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("comment of user %d vanished during upsert: %w", userID, models.ErrConflict)
				}
			default:
				return fmt.Errorf("failed to insert comment: %w", database.Classify(err))
			}
		}
		res.CommentID = id

		aggID, err := lockAggregate(ctx, tx, locationID)
		if err != nil {
			return err
		}

		delta, added := int64(req.Rank), int64(1)
		if !res.Created {
			if _, err := tx.Exec(ctx, updateComment, req.Rank, req.Content, id); err != nil {
				return fmt.Errorf("failed to update comment %d: %w", id, database.Classify(err))
			}
			delta, added = int64(req.Rank)-int64(oldRank), 0
		}

		agg, err := applyDelta(ctx, tx, aggID, delta, added)
		if err != nil {
			return err
		}
		res.Aggregate = *agg
		return nil
	})

	r.recordRankTransaction(ctx, "upsert", res.Created, err)
	if err != nil {
		l.Error("Rank upsert rolled back", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return nil, err
	}

	l.Debug("Rank upsert committed", zap.Bool("created", res.Created), zap.Int64("total", res.Aggregate.Total), zap.Int64("count", res.Aggregate.Count))
	span.SetStatus(codes.Ok, "")
	return &res, nil
}

// Create inserts the caller's first comment on a location and adds its rank
// to the aggregate.
func (r *PostgresRepository) Create(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error) {
	ctx, span := otel.Tracer("CommentRepository").Start(ctx, "CommentRepository.Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("user.id", userID),
		attribute.Int64("location.id", locationID),
	))
	defer span.End()

	var res models.UpsertResult
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		res = models.UpsertResult{Created: true}
		if err := tx.QueryRow(ctx, insertComment, req.Rank, req.Content, userID, locationID).Scan(&res.CommentID); err != nil {
			return fmt.Errorf("failed to insert comment: %w", database.Classify(err))
		}
		aggID, err := lockAggregate(ctx, tx, locationID)
		if err != nil {
			return err
		}
		agg, err := applyDelta(ctx, tx, aggID, int64(req.Rank), 1)
		if err != nil {
			return err
		}
		res.Aggregate = *agg
		return nil
	})

	r.recordRankTransaction(ctx, "create", true, err)
	if err != nil {
		if !errors.Is(err, models.ErrConflict) {
			r.logger.Error("Comment create rolled back", zap.Error(err), zap.Int64("userID", userID), zap.Int64("locationID", locationID))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return &res, nil
}

func (r *PostgresRepository) ListOfLocation(ctx context.Context, f models.CommentFilter) ([]models.Comment, int64, error) {
	ctx, span := otel.Tracer("CommentRepository").Start(ctx, "CommentRepository.ListOfLocation", trace.WithAttributes(
		attribute.Int64("location.id", f.LocationID),
		attribute.Int("limit", f.Limit),
		attribute.Int("offset", f.Offset),
	))
	defer span.End()

	if f.Offset < 0 {
		return nil, 0, fmt.Errorf("offset %d must not be negative: %w", f.Offset, models.ErrValidation)
	}
	where := sq.And{sq.Eq{"location_id": f.LocationID}}
	if f.RankGT != nil {
		where = append(where, sq.Gt{"rank": *f.RankGT})
	}
	if f.RankLT != nil {
		where = append(where, sq.Lt{"rank": *f.RankLT})
	}

	var (
		list  = []models.Comment{}
		total int64
	)
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		query, args, err := psql.Select("COUNT(*)").From("comments").Where(where).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build count query: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count comments: %w", database.Classify(err))
		}

		limit := min(f.Limit, r.maxPage)
		if limit <= 0 || int64(f.Offset) >= total {
			return nil
		}
		query, args, err = psql.Select(commentColumns...).From("comments").Where(where).
			OrderBy("updated_at DESC", "id DESC").
			Limit(uint64(limit)).
			Offset(uint64(f.Offset)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build page query: %w", err)
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list comments: %w", database.Classify(err))
		}
		list, err = pgx.CollectRows(rows, scanComment)
		if err != nil {
			return fmt.Errorf("failed to scan comments: %w", database.Classify(err))
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to list comments", zap.Error(err), zap.Int64("locationID", f.LocationID))
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int64("total", total))
	return list, total, nil
}

func (r *PostgresRepository) Mine(ctx context.Context, userID, locationID int64) (*models.Comment, error) {
	query, args, err := psql.Select(commentColumns...).From("comments").
		Where(sq.Eq{"user_id": userID, "location_id": locationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var c *models.Comment
	err = r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		found, err := pgx.CollectOneRow(rows, scanComment)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		c = &found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load comment: %w", database.Classify(err))
	}
	return c, nil
}

func (r *PostgresRepository) Aggregate(ctx context.Context, locationID int64) (*models.RankAggregate, error) {
	var a models.RankAggregate
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, selectAggregate, locationID).
			Scan(&a.ID, &a.Total, &a.Count, &a.LocationID, &a.CreatedAt, &a.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("rank of location %d: %w", locationID, database.Classify(err))
	}
	return &a, nil
}

func (r *PostgresRepository) recordRankTransaction(ctx context.Context, op string, created bool, err error) {
	outcome := "updated"
	switch {
	case err != nil:
		outcome = "rolled_back"
	case created:
		outcome = "created"
	}
	metrics.Get().RankTransactionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func lockOwnComment(ctx context.Context, tx pgx.Tx, userID, locationID int64) (id int64, rank int32, found bool, err error) {
	err = tx.QueryRow(ctx, selectOwnCommentForUpdate, userID, locationID).Scan(&id, &rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to lock comment: %w", database.Classify(err))
	}
	return id, rank, true, nil
}

func lockAggregate(ctx context.Context, tx pgx.Tx, locationID int64) (int64, error) {
	var id int64
	if err := tx.QueryRow(ctx, selectAggregateForUpdate, locationID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to lock rank of location %d: %w", locationID, database.Classify(err))
	}
	return id, nil
}

func applyDelta(ctx context.Context, tx pgx.Tx, aggID, delta, added int64) (*models.RankAggregate, error) {
	var a models.RankAggregate
	err := tx.QueryRow(ctx, applyAggregateDelta, delta, added, aggID).
		Scan(&a.ID, &a.Total, &a.Count, &a.LocationID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to apply rank delta: %w", database.Classify(err))
	}
	return &a, nil
}

func scanComment(row pgx.CollectableRow) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.Rank, &c.Content, &c.UserID, &c.LocationID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
