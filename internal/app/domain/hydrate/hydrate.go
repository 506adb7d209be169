// Package hydrate batch-loads the relations of a page of parents. Every
// loader issues at most one statement regardless of page size and returns
// results aligned with the input order.
package hydrate

import (
	"context"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Group projects children onto parentIDs. Result[i] holds the children of
// parentIDs[i] in the order they were loaded, and is an empty non-nil slice
// when there are none.
func Group[C any](parentIDs []int64, children []C, parentOf func(C) int64) [][]C {
	byParent := make(map[int64][]C, len(parentIDs))
	for _, c := range children {
		p := parentOf(c)
		byParent[p] = append(byParent[p], c)
	}
	out := make([][]C, len(parentIDs))
	for i, id := range parentIDs {
		if cs, ok := byParent[id]; ok {
			out[i] = cs
		} else {
			out[i] = []C{}
		}
	}
	return out
}

// Index projects one-to-one values onto keys. Missing keys yield nil.
func Index[V any](keys []int64, values []V, keyOf func(V) int64) []*V {
	byKey := make(map[int64]*V, len(values))
	for i := range values {
		byKey[keyOf(values[i])] = &values[i]
	}
	out := make([]*V, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// Distinct returns ids without duplicates, preserving first occurrence.
func Distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PhotoRelation names a parent/upload join table.
type PhotoRelation struct {
	Table     string
	ParentKey string
}

var (
	LocationPhotos = PhotoRelation{Table: "location_upload_rels", ParentKey: "location_id"}
	PlayingPhotos  = PhotoRelation{Table: "playing_upload_rels", ParentKey: "playing_id"}
	EatingPhotos   = PhotoRelation{Table: "eating_upload_rels", ParentKey: "eating_id"}
	MemoryPhotos   = PhotoRelation{Table: "memory_upload_rels", ParentKey: "memory_id"}
)

type parentedUpload struct {
	parent int64
	models.Upload
}

// Photos loads the uploads attached to each parent through rel.
func Photos(ctx context.Context, q database.Querier, rel PhotoRelation, parentIDs []int64) ([][]models.Upload, error) {
	if len(parentIDs) == 0 {
		return [][]models.Upload{}, nil
	}
	b := psql.Select("r."+rel.ParentKey, "u.id", "u.fetch_code", "u.owner_id", "u.created_at", "u.updated_at").
		From(rel.Table + " AS r").
		Join("uploads AS u ON u.id = r.upload_id").
		Where(sq.Expr("r."+rel.ParentKey+" = ANY(?)", Distinct(parentIDs))).
		OrderBy("r.id ASC")

	rows, err := collect(ctx, q, b, func(row pgx.CollectableRow) (parentedUpload, error) {
		var u parentedUpload
		err := row.Scan(&u.parent, &u.ID, &u.FetchCode, &u.OwnerID, &u.CreatedAt, &u.UpdatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load photos from %s: %w", rel.Table, err)
	}

	grouped := Group(parentIDs, rows, func(u parentedUpload) int64 { return u.parent })
	out := make([][]models.Upload, len(grouped))
	for i, g := range grouped {
		out[i] = make([]models.Upload, len(g))
		for j, u := range g {
			out[i][j] = u.Upload
		}
	}
	return out, nil
}

// Equipments loads the equipment list of each location.
func Equipments(ctx context.Context, q database.Querier, locationIDs []int64) ([][]models.Equipment, error) {
	if len(locationIDs) == 0 {
		return [][]models.Equipment{}, nil
	}
	b := psql.Select("id", "name", "is_required", "usage", "location_id", "created_at", "updated_at").
		From("equipments").
		Where(sq.Expr("location_id = ANY(?)", Distinct(locationIDs))).
		OrderBy("id ASC")

	rows, err := collect(ctx, q, b, func(row pgx.CollectableRow) (models.Equipment, error) {
		var e models.Equipment
		err := row.Scan(&e.ID, &e.Name, &e.IsRequired, &e.Usage, &e.LocationID, &e.CreatedAt, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load equipments: %w", err)
	}
	return Group(locationIDs, rows, func(e models.Equipment) int64 { return e.LocationID }), nil
}

// Discoverers loads the public profile of each user id. Duplicated ids are
// fetched once and shared.
func Discoverers(ctx context.Context, q database.Querier, userIDs []int64) ([]*models.Discoverer, error) {
	if len(userIDs) == 0 {
		return []*models.Discoverer{}, nil
	}
	b := psql.Select("id", "name", "avatar").
		From("users").
		Where(sq.Expr("id = ANY(?)", Distinct(userIDs)))

	rows, err := collect(ctx, q, b, func(row pgx.CollectableRow) (models.Discoverer, error) {
		var d models.Discoverer
		err := row.Scan(&d.ID, &d.Name, &d.Avatar)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load discoverers: %w", err)
	}
	return Index(userIDs, rows, func(d models.Discoverer) int64 { return d.ID }), nil
}

// RankAggregates loads the aggregate of each location. Locations without an
// aggregate row yield nil.
func RankAggregates(ctx context.Context, q database.Querier, locationIDs []int64) ([]*models.RankAggregate, error) {
	if len(locationIDs) == 0 {
		return []*models.RankAggregate{}, nil
	}
	b := psql.Select("id", "total", "count", "location_id", "created_at", "updated_at").
		From("rank_aggregations").
		Where(sq.Expr("location_id = ANY(?)", Distinct(locationIDs)))

	rows, err := collect(ctx, q, b, func(row pgx.CollectableRow) (models.RankAggregate, error) {
		var a models.RankAggregate
		err := row.Scan(&a.ID, &a.Total, &a.Count, &a.LocationID, &a.CreatedAt, &a.UpdatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rank aggregates: %w", err)
	}
	return Index(locationIDs, rows, func(a models.RankAggregate) int64 { return a.LocationID }), nil
}

func collect[T any](ctx context.Context, q database.Querier, b sq.SelectBuilder, scan pgx.RowToFunc[T]) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, database.Classify(err)
	}
	return slices.Clip(out), nil
}
