// Package nearby answers "which entities of a kind lie within a radius of a
// point", with filtering, ordering, pagination and an exact total.
package nearby

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/app/observability/metrics"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

// DefaultMaxPageSize is the hard ceiling applied to every page.
const DefaultMaxPageSize = 40

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Request is a nearby query. Radius is in metres and is required.
type Request struct {
	Filter Filter
	Center models.Point
	Radius float64
	Order  ordering.Key
	Limit  int
	Offset int
}

// Page is one page of hits plus the total number of matches, independent of
// Limit, Offset and Order.
type Page struct {
	Hits  []models.NearbyHit
	Total int64
}

// IDs returns the hit ids in page order.
func (p *Page) IDs() []int64 {
	ids := make([]int64, len(p.Hits))
	for i, h := range p.Hits {
		ids[i] = h.Place.ID
	}
	return ids
}

// DiscovererIDs returns the discoverer of every hit in page order.
func (p *Page) DiscovererIDs() []int64 {
	ids := make([]int64, len(p.Hits))
	for i, h := range p.Hits {
		ids[i] = h.Place.DiscovererID
	}
	return ids
}

type Engine struct {
	kind    Kind
	maxPage int
	logger  *zap.Logger
}

func NewEngine(kind Kind, maxPage int, logger *zap.Logger) *Engine {
	if maxPage <= 0 {
		maxPage = DefaultMaxPageSize
	}
	return &Engine{kind: kind, maxPage: maxPage, logger: logger}
}

func (e *Engine) Kind() Kind {
	return e.kind
}

// Query runs the count and the page for req on q. The two statements are not
// required to observe the same snapshot; under concurrent writes Total may
// disagree with the page by the rows that changed in between.
func (e *Engine) Query(ctx context.Context, q database.Querier, req Request) (*Page, error) {
	clauses := append(req.Filter.Clauses(), Within{Center: req.Center, Radius: req.Radius})
	return e.Search(ctx, q, Spec{Center: req.Center, Clauses: clauses}, req.Order, req.Limit, req.Offset)
}

// Count returns the number of entities matching spec.
func (e *Engine) Count(ctx context.Context, q database.Querier, spec Spec) (int64, error) {
	where, err := spec.where(e.kind)
	if err != nil {
		return 0, err
	}
	return e.count(ctx, q, where)
}

// Lookup fetches a single entity by id with its distance from center.
func (e *Engine) Lookup(ctx context.Context, q database.Querier, id int64, center models.Point) (*models.NearbyHit, error) {
	if err := geo.ValidatePoint(center); err != nil {
		return nil, err
	}
	page, err := e.Search(ctx, q, Spec{Center: center, Clauses: []Clause{IDIs(id)}}, ordering.Default, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(page.Hits) == 0 {
		return nil, fmt.Errorf("%s %d: %w", e.kind.Name, id, models.ErrNotFound)
	}
	return &page.Hits[0], nil
}

// Search runs an arbitrary spec. Without a Within clause the search is
// unbounded but distances are still measured from spec.Center.
func (e *Engine) Search(ctx context.Context, q database.Querier, spec Spec, order ordering.Key, limit, offset int) (*Page, error) {
	ctx, span := otel.Tracer("NearbyEngine").Start(ctx, "NearbyEngine.Query", trace.WithAttributes(
		attribute.String("kind", string(e.kind.Name)),
		attribute.String("order", order.String()),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	))
	defer span.End()
	l := e.logger.With(zap.String("method", "NearbyEngine.Query"), zap.String("kind", string(e.kind.Name)))

	if offset < 0 {
		err := fmt.Errorf("offset %d must not be negative: %w", offset, models.ErrValidation)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid offset")
		return nil, err
	}

	if err := geo.ValidatePoint(spec.Center); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid center")
		return nil, err
	}
	where, err := spec.where(e.kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid spec")
		return nil, err
	}

	total, err := e.count(ctx, q, where)
	if err != nil {
		l.Error("Failed to count nearby entities", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return nil, err
	}

	m := metrics.Get()
	kindAttr := metric.WithAttributes(attribute.String("kind", string(e.kind.Name)))
	m.NearbyQueriesTotal.Add(ctx, 1, kindAttr)

	page := &Page{Hits: []models.NearbyHit{}, Total: total}
	limit = min(limit, e.maxPage)
	if limit <= 0 || int64(offset) >= total {
		m.NearbyPageSize.Record(ctx, 0, kindAttr)
		span.SetStatus(codes.Ok, "empty page")
		return page, nil
	}

	hits, err := e.page(ctx, q, spec.Center, where, order, limit, offset)
	if err != nil {
		l.Error("Failed to load nearby page", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "page failed")
		return nil, err
	}
	page.Hits = hits
	e.checkRadius(l, spec, hits)

	m.NearbyPageSize.Record(ctx, int64(len(hits)), kindAttr)
	span.SetAttributes(attribute.Int64("total", total), attribute.Int("rows", len(hits)))
	span.SetStatus(codes.Ok, "")
	return page, nil
}

// CountSQL renders the count statement for spec. The page statement shares
// its WHERE clause.
func (e *Engine) CountSQL(spec Spec) (string, []any, error) {
	where, err := spec.where(e.kind)
	if err != nil {
		return "", nil, err
	}
	return e.countBuilder(where).ToSql()
}

func (e *Engine) countBuilder(where sq.And) sq.SelectBuilder {
	b := psql.Select("COUNT(*)").From(e.kind.from())
	if len(where) > 0 {
		b = b.Where(where)
	}
	return b
}

func (e *Engine) count(ctx context.Context, q database.Querier, where sq.And) (int64, error) {
	query, args, err := e.countBuilder(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int64
	if err := q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", e.kind.Table, database.Classify(err))
	}
	return total, nil
}

// radiusSlack absorbs float drift between the SQL and Go distance paths.
const radiusSlack = 0.5

// checkRadius logs any hit the SQL predicate admitted that geo.Within rejects.
// The two must agree; a warning here means the schema functions drifted.
func (e *Engine) checkRadius(l *zap.Logger, spec Spec, hits []models.NearbyHit) {
	for _, c := range spec.Clauses {
		w, ok := c.(Within)
		if !ok {
			continue
		}
		for _, h := range hits {
			p := models.Point{Latitude: h.Place.Latitude, Longitude: h.Place.Longitude}
			if !geo.Within(p, w.Center, w.Radius+radiusSlack) {
				l.Warn("Row outside the requested radius",
					zap.Int64("id", h.Place.ID),
					zap.Float64("radius", w.Radius),
					zap.Float64("sqlDistance", h.Distance),
					zap.Float64("distance", geo.Distance(p, w.Center)))
			}
		}
	}
}

func (e *Engine) page(ctx context.Context, q database.Querier, center models.Point, where sq.And, order ordering.Key, limit, offset int) ([]models.NearbyHit, error) {
	b := psql.Select(e.kind.columns()...).
		Column(sq.Alias(geo.DistanceSQL(center, e.kind.geoColumns()), "distance")).
		From(e.kind.from())
	if len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.
		OrderBy(order.OrderBy(e.kind.orderColumns())...).
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build page query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.kind.Table, database.Classify(err))
	}
	defer rows.Close()

	hits := make([]models.NearbyHit, 0, limit)
	for rows.Next() {
		var h models.NearbyHit
		p := &h.Place
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.Category, &p.Description,
			&p.DiscovererID, &p.CreatedAt, &p.UpdatedAt, &h.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", e.kind.Table, database.Classify(err))
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", e.kind.Table, database.Classify(err))
	}
	return hits, nil
}
