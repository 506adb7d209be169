// Package place serves the lightweight geo-tagged kinds, playings and
// eatings, that share the nearby engine with locations but carry only a
// name, a point and photos.
package place

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/hydrate"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/upload"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ Repository = (*PostgresRepository)(nil)

type Repository interface {
	Nearby(ctx context.Context, req nearby.Request) (*models.ListResponse[models.NearbyPlace], error)
	// Create inserts a place owned by owner and attaches its photos.
	Create(ctx context.Context, owner int64, req models.CreatePlaceRequest) (int64, error)
}

type PostgresRepository struct {
	db     *database.DB
	engine *nearby.Engine
	photos hydrate.PhotoRelation
	insert string
	logger *zap.Logger
}

// NewPostgresRepository binds the repository to the table of engine's kind.
func NewPostgresRepository(db *database.DB, engine *nearby.Engine, photos hydrate.PhotoRelation, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		engine: engine,
		photos: photos,
		insert: fmt.Sprintf(
			`INSERT INTO %s (name, latitude, longitude, discoverer_id) VALUES ($1, $2, $3, $4) RETURNING id`,
			engine.Kind().Table,
		),
		logger: logger,
	}
}

func (r *PostgresRepository) Nearby(ctx context.Context, req nearby.Request) (*models.ListResponse[models.NearbyPlace], error) {
	var res *models.ListResponse[models.NearbyPlace]
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		page, err := r.engine.Query(ctx, tx, req)
		if err != nil {
			return err
		}
		discoverers, err := hydrate.Discoverers(ctx, tx, page.DiscovererIDs())
		if err != nil {
			return err
		}
		photos, err := hydrate.Photos(ctx, tx, r.photos, page.IDs())
		if err != nil {
			return err
		}
		list := make([]models.NearbyPlace, len(page.Hits))
		for i, h := range page.Hits {
			list[i] = models.NearbyPlace{
				Place:      h.Place,
				Discoverer: discoverers[i],
				Photos:     photos[i],
				Distance:   h.Distance,
			}
		}
		res = &models.ListResponse[models.NearbyPlace]{List: list, Total: page.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) Create(ctx context.Context, owner int64, req models.CreatePlaceRequest) (int64, error) {
	kind := r.engine.Kind().Name
	ctx, span := otel.Tracer("PlaceRepository").Start(ctx, "PlaceRepository.Create", trace.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int64("user.id", owner),
		attribute.Int("photos", len(req.Photos)),
	))
	defer span.End()

	var id int64
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := upload.CheckOwned(ctx, tx, req.Photos, owner); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, r.insert, req.Name, req.Latitude, req.Longitude, owner).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert %s: %w", kind, database.Classify(err))
		}
		return upload.Attach(ctx, tx, r.photos, id, req.Photos)
	})
	if err != nil {
		r.logger.Warn("Place not created", zap.String("kind", string(kind)), zap.Int64("userID", owner), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("place.id", id))
	span.SetStatus(codes.Ok, "")
	return id, nil
}
