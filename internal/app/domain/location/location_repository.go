package location

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
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/upload"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ Repository = (*PostgresRepository)(nil)

// createLockKey serialises location creation so the duplicate check cannot
// race with a concurrent insert nearby.
const createLockKey int64 = 0x6c6f6361

const (
	insertLocation = `INSERT INTO locations (name, latitude, longitude, category, description, discoverer_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	insertAggregate    = `INSERT INTO rank_aggregations (location_id) VALUES ($1)`
	lockLocationOwner  = `SELECT discoverer_id FROM locations WHERE id = $1 FOR UPDATE`
	updateLocationStmt = `UPDATE locations SET name = $1, latitude = $2, longitude = $3, category = $4, description = $5,
		updated_at = NOW() WHERE id = $6`
	insertEquipment = `INSERT INTO equipments (name, is_required, usage, location_id) VALUES ($1, $2, $3, $4) RETURNING id`
)

type Repository interface {
	// Nearby pages through the locations within req.Radius of req.Center.
	Nearby(ctx context.Context, req nearby.Request) (*models.ListResponse[models.NearbyLocation], error)
	// Mine pages through the locations discovered by owner, measured from center.
	Mine(ctx context.Context, owner int64, center models.Point, order ordering.Key, limit, offset int) (*models.ListResponse[models.NearbyLocation], error)
	Detail(ctx context.Context, id int64, center models.Point) (*models.NearbyLocation, error)
	// Create inserts a location with its photos and an empty rank aggregate.
	// Another location within duplicateRadius metres is a conflict.
	Create(ctx context.Context, owner int64, req models.CreateLocationRequest, duplicateRadius float64) (int64, error)
	// Update replaces every mutable field and the whole photo set.
	Update(ctx context.Context, caller, id int64, req models.UpdateLocationRequest) error
	AddEquipment(ctx context.Context, caller, locationID int64, req models.AddEquipmentRequest) (int64, error)
}

type PostgresRepository struct {
	db     *database.DB
	engine *nearby.Engine
	logger *zap.Logger
}

func NewPostgresRepository(db *database.DB, engine *nearby.Engine, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, engine: engine, logger: logger}
}

func (r *PostgresRepository) Nearby(ctx context.Context, req nearby.Request) (*models.ListResponse[models.NearbyLocation], error) {
	var res *models.ListResponse[models.NearbyLocation]
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		page, err := r.engine.Query(ctx, tx, req)
		if err != nil {
			return err
		}
		list, err := hydrateLocations(ctx, tx, page.Hits)
		if err != nil {
			return err
		}
		res = &models.ListResponse[models.NearbyLocation]{List: list, Total: page.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) Mine(ctx context.Context, owner int64, center models.Point, order ordering.Key, limit, offset int) (*models.ListResponse[models.NearbyLocation], error) {
	spec := nearby.Spec{Center: center, Clauses: []nearby.Clause{nearby.OwnerIs(owner)}}
	var res *models.ListResponse[models.NearbyLocation]
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		page, err := r.engine.Search(ctx, tx, spec, order, limit, offset)
		if err != nil {
			return err
		}
		list, err := hydrateLocations(ctx, tx, page.Hits)
		if err != nil {
			return err
		}
		res = &models.ListResponse[models.NearbyLocation]{List: list, Total: page.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) Detail(ctx context.Context, id int64, center models.Point) (*models.NearbyLocation, error) {
	var out *models.NearbyLocation
	err := r.db.ReadOnly(ctx, func(tx pgx.Tx) error {
		hit, err := r.engine.Lookup(ctx, tx, id, center)
		if err != nil {
			return err
		}
		list, err := hydrateLocations(ctx, tx, []models.NearbyHit{*hit})
		if err != nil {
			return err
		}
		out = &list[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, owner int64, req models.CreateLocationRequest, duplicateRadius float64) (int64, error) {
	ctx, span := otel.Tracer("LocationRepository").Start(ctx, "LocationRepository.Create", trace.WithAttributes(
		attribute.Int64("user.id", owner),
		attribute.Float64("latitude", req.Latitude),
		attribute.Float64("longitude", req.Longitude),
	))
	defer span.End()
	center := models.Point{Latitude: req.Latitude, Longitude: req.Longitude}

	var id int64
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, createLockKey); err != nil {
			return fmt.Errorf("failed to take create lock: %w", database.Classify(err))
		}
		dupes, err := r.engine.Count(ctx, tx, nearby.Spec{
			Center:  center,
			Clauses: []nearby.Clause{nearby.Within{Center: center, Radius: duplicateRadius}},
		})
		if err != nil {
			return err
		}
		if dupes > 0 {
			return fmt.Errorf("a location already exists within %.0fm: %w", duplicateRadius, models.ErrConflict)
		}
		if err := upload.CheckOwned(ctx, tx, req.Photos, owner); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, insertLocation, req.Name, req.Latitude, req.Longitude, req.Category, req.Description, owner).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert location: %w", database.Classify(err))
		}
		if err := upload.Attach(ctx, tx, hydrate.LocationPhotos, id, req.Photos); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertAggregate, id); err != nil {
			return fmt.Errorf("failed to create rank of location %d: %w", id, database.Classify(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("location.id", id))
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (r *PostgresRepository) Update(ctx context.Context, caller, id int64, req models.UpdateLocationRequest) error {
	ctx, span := otel.Tracer("LocationRepository").Start(ctx, "LocationRepository.Update", trace.WithAttributes(
		attribute.Int64("user.id", caller),
		attribute.Int64("location.id", id),
	))
	defer span.End()

	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, caller, id); err != nil {
			return err
		}
		if err := upload.CheckOwned(ctx, tx, req.Photos, caller); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, updateLocationStmt, req.Name, req.Latitude, req.Longitude, req.Category, req.Description, id)
		if err != nil {
			return fmt.Errorf("failed to update location %d: %w", id, database.Classify(err))
		}
		return upload.Replace(ctx, tx, hydrate.LocationPhotos, id, req.Photos)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresRepository) AddEquipment(ctx context.Context, caller, locationID int64, req models.AddEquipmentRequest) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockOwned(ctx, tx, caller, locationID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, insertEquipment, req.Name, req.IsRequired, req.Usage, locationID).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to insert equipment: %w", database.Classify(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// lockOwned locks the location row and checks that caller discovered it.
func lockOwned(ctx context.Context, tx pgx.Tx, caller, id int64) error {
	var owner int64
	if err := tx.QueryRow(ctx, lockLocationOwner, id).Scan(&owner); err != nil {
		return fmt.Errorf("location %d: %w", id, database.Classify(err))
	}
	if owner != caller {
		return fmt.Errorf("location %d is owned by another user: %w", id, models.ErrForbidden)
	}
	return nil
}

// hydrateLocations attaches relations to hits in a bounded number of
// statements. The result is aligned with hits.
func hydrateLocations(ctx context.Context, q database.Querier, hits []models.NearbyHit) ([]models.NearbyLocation, error) {
	page := nearby.Page{Hits: hits}
	ids := page.IDs()

	discoverers, err := hydrate.Discoverers(ctx, q, page.DiscovererIDs())
	if err != nil {
		return nil, err
	}
	equipments, err := hydrate.Equipments(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	photos, err := hydrate.Photos(ctx, q, hydrate.LocationPhotos, ids)
	if err != nil {
		return nil, err
	}
	ranks, err := hydrate.RankAggregates(ctx, q, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.NearbyLocation, len(hits))
	for i, h := range hits {
		out[i] = models.NearbyLocation{
			Location:   h.Place,
			Discoverer: discoverers[i],
			Equipments: equipments[i],
			Photos:     photos[i],
			Distance:   h.Distance,
			Rank:       ranks[i],
		}
	}
	return out, nil
}
