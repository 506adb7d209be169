package upload

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/hydrate"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ Repository = (*PostgresRepository)(nil)

type Repository interface {
	Insert(ctx context.Context, ownerID int64, fetchCode string) (*models.Upload, error)
	Get(ctx context.Context, id int64) (*models.Upload, error)
}

type PostgresRepository struct {
	db     database.Querier
	logger *zap.Logger
}

func NewPostgresRepository(db database.Querier, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) Insert(ctx context.Context, ownerID int64, fetchCode string) (*models.Upload, error) {
	u := models.Upload{FetchCode: fetchCode, OwnerID: ownerID}
	err := r.db.QueryRow(ctx,
		`INSERT INTO uploads (fetch_code, owner_id) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		fetchCode, ownerID,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		r.logger.Error("Error inserting upload", zap.Error(err), zap.Int64("ownerID", ownerID))
		return nil, fmt.Errorf("failed to insert upload: %w", database.Classify(err))
	}
	return &u, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.Upload, error) {
	var u models.Upload
	err := r.db.QueryRow(ctx,
		`SELECT id, fetch_code, owner_id, created_at, updated_at FROM uploads WHERE id = $1`, id,
	).Scan(&u.ID, &u.FetchCode, &u.OwnerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upload %d: %w", id, database.Classify(err))
	}
	return &u, nil
}

// CheckOwned verifies that every id names an existing upload owned by owner.
// Unknown ids are a validation error, foreign ones are forbidden.
func CheckOwned(ctx context.Context, q database.Querier, ids []int64, owner int64) error {
	ids = hydrate.Distinct(ids)
	if len(ids) == 0 {
		return nil
	}
	rows, err := q.Query(ctx, `SELECT id, owner_id FROM uploads WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to check uploads: %w", database.Classify(err))
	}
	owners, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]int64, error) {
		var v [2]int64
		err := row.Scan(&v[0], &v[1])
		return v, err
	})
	if err != nil {
		return fmt.Errorf("failed to check uploads: %w", database.Classify(err))
	}

	found := make(map[int64]int64, len(owners))
	for _, o := range owners {
		found[o[0]] = o[1]
	}
	for _, id := range ids {
		ownerID, ok := found[id]
		if !ok {
			return fmt.Errorf("photo %d does not exist: %w", id, models.ErrValidation)
		}
		if ownerID != owner {
			return fmt.Errorf("photo %d belongs to another user: %w", id, models.ErrForbidden)
		}
	}
	return nil
}

// Attach links uploadIDs to parentID through rel, preserving their order.
func Attach(ctx context.Context, q database.Querier, rel hydrate.PhotoRelation, parentID int64, uploadIDs []int64) error {
	uploadIDs = hydrate.Distinct(uploadIDs)
	if len(uploadIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, upload_id) SELECT $1, u.id FROM unnest($2::bigint[]) WITH ORDINALITY AS u(id, ord) ORDER BY u.ord`,
		rel.Table, rel.ParentKey,
	)
	if _, err := q.Exec(ctx, query, parentID, uploadIDs); err != nil {
		return fmt.Errorf("failed to attach photos to %s: %w", rel.Table, database.Classify(err))
	}
	return nil
}

// Replace makes uploadIDs the complete photo set of parentID.
func Replace(ctx context.Context, q database.Querier, rel hydrate.PhotoRelation, parentID int64, uploadIDs []int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, rel.Table, rel.ParentKey)
	if _, err := q.Exec(ctx, query, parentID); err != nil {
		return fmt.Errorf("failed to detach photos from %s: %w", rel.Table, database.Classify(err))
	}
	return Attach(ctx, q, rel, parentID, uploadIDs)
}
