package memory

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/hydrate"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/upload"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ Repository = (*PostgresRepository)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	fromMemories   = "memories AS m JOIN locations AS l ON l.id = m.location_id"
	insertMemory   = `INSERT INTO memories (title, content, owner_id, location_id) VALUES ($1, $2, $3, $4) RETURNING id`
	memoryDistance = "distance"
)

var (
	memoryColumns = []string{"m.id", "m.title", "m.content", "m.owner_id", "m.location_id", "m.created_at", "m.updated_at"}
	orderColumns  = ordering.Columns{
		Distance: memoryDistance,
		Created:  "m.created_at",
		Updated:  "m.updated_at",
		Name:     "m.title",
		ID:       "m.id",
	}
	locationPoint = geo.Columns{Latitude: "l.latitude", Longitude: "l.longitude"}
)

// ListQuery is a memory listing. Distances are measured from Center to the
// memory's location.
type ListQuery struct {
	Filter models.MemoryFilter
	Center models.Point
	Order  ordering.Key
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, owner, locationID int64, req models.CreateMemoryRequest) (int64, error)
	List(ctx context.Context, q ListQuery) (*models.ListResponse[models.MemoryItem], error)
}

type PostgresRepository struct {
	db      *database.DB
	maxPage int
	logger  *zap.Logger
}

func NewPostgresRepository(db *database.DB, maxPage int, logger *zap.Logger) *PostgresRepository {
	if maxPage <= 0 {
		maxPage = nearby.DefaultMaxPageSize
	}
	return &PostgresRepository{db: db, maxPage: maxPage, logger: logger}
}

// Create inserts the memory and its photo relations in one transaction. An
// unknown location surfaces as not found through the foreign key.
func (r *PostgresRepository) Create(ctx context.Context, owner, locationID int64, req models.CreateMemoryRequest) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := upload.CheckOwned(ctx, tx, req.Photos, owner); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, insertMemory, req.Title, req.Content, owner, locationID).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert memory for location %d: %w", locationID, database.Classify(err))
		}
		return upload.Attach(ctx, tx, hydrate.MemoryPhotos, id, req.Photos)
	})
	if err != nil {
		r.logger.Warn("Memory not created", zap.Int64("userID", owner), zap.Int64("locationID", locationID), zap.Error(err))
		return 0, err
	}
	return id, nil
}

func (r *PostgresRepository) List(ctx context.Context, q ListQuery) (*models.ListResponse[models.MemoryItem], error) {
	where := predicate(q.Filter)
	limit := min(q.Limit, r.maxPage)
	res := &models.ListResponse[models.MemoryItem]{List: []models.MemoryItem{}}

	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		query, args, err := filtered(psql.Select("COUNT(*)").From(fromMemories), where).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build memory count: %w", err)
		}
		if err := tx.QueryRow(ctx, query, args...).Scan(&res.Total); err != nil {
			return fmt.Errorf("failed to count memories: %w", database.Classify(err))
		}
		if limit <= 0 || int64(q.Offset) >= res.Total {
			return nil
		}

		page := psql.Select(memoryColumns...).
			Column(sq.Alias(geo.DistanceSQL(q.Center, locationPoint), memoryDistance)).
			From(fromMemories)
		query, args, err = filtered(page, where).
			OrderBy(q.Order.OrderBy(orderColumns)...).
			Limit(uint64(limit)).
			Offset(uint64(q.Offset)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build memory page: %w", err)
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query memories: %w", database.Classify(err))
		}
		items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MemoryItem, error) {
			var it models.MemoryItem
			m := &it.Memory
			err := row.Scan(&m.ID, &m.Title, &m.Content, &m.OwnerID, &m.LocationID, &m.CreatedAt, &m.UpdatedAt, &it.Distance)
			return it, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan memories: %w", database.Classify(err))
		}

		ids := make([]int64, len(items))
		for i, it := range items {
			ids[i] = it.Memory.ID
		}
		photos, err := hydrate.Photos(ctx, tx, hydrate.MemoryPhotos, ids)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].Photos = photos[i]
		}
		res.List = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func predicate(f models.MemoryFilter) sq.And {
	pred := sq.And{}
	if f.LocationID != nil {
		pred = append(pred, sq.Eq{"m.location_id": *f.LocationID})
	}
	if f.OwnerID != nil {
		pred = append(pred, sq.Eq{"m.owner_id": *f.OwnerID})
	}
	if title := nearby.NormalizeName(f.Title); title != "" {
		pred = append(pred, sq.ILike{"m.title": "%" + nearby.EscapeLike(title) + "%"})
	}
	if f.CreatedAfter != nil {
		pred = append(pred, sq.GtOrEq{"m.created_at": *f.CreatedAfter})
	}
	if f.CreatedBefore != nil {
		pred = append(pred, sq.LtOrEq{"m.created_at": *f.CreatedBefore})
	}
	return pred
}

func filtered(b sq.SelectBuilder, where sq.And) sq.SelectBuilder {
	if len(where) > 0 {
		return b.Where(where)
	}
	return b
}
