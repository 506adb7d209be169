package nearby

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var (
	center   = models.Point{Latitude: 31.2304, Longitude: 121.4737}
	placeCol = []string{"id", "name", "latitude", "longitude", "category", "description", "discoverer_id", "created_at", "updated_at", "distance"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func category(c int32) *int32 { return &c }

func expectCount(mock pgxmock.PgxPoolIface, e *Engine, spec Spec, total int64) []any {
	sql, args, err := e.CountSQL(spec)
	if err != nil {
		panic(err)
	}
	mock.ExpectQuery("^" + regexp.QuoteMeta(sql) + "$").
		WithArgs(args...).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(total))
	return args
}

func nearbySpec(f Filter, radius float64) Spec {
	return Spec{Center: center, Clauses: append(f.Clauses(), Within{Center: center, Radius: radius})}
}

func TestQueryTotalIsInvariant(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(Locations, 40, zap.NewNop())
	mock := newMock(t)
	filter := Filter{Name: "Park", Category: category(2)}
	spec := nearbySpec(filter, 1000)

	// limit 0: count only, no page statement.
	expectCount(mock, e, spec, 7)
	page, err := e.Query(ctx, mock, Request{Filter: filter, Center: center, Radius: 1000, Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Empty(t, page.Hits)

	// offset past the end: same count statement, still no page statement.
	expectCount(mock, e, spec, 7)
	page, err = e.Query(ctx, mock, Request{Filter: filter, Center: center, Radius: 1000, Limit: 10, Offset: 7, Order: ordering.NameDesc})
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Empty(t, page.Hits)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPage(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	e := NewEngine(Locations, 40, zap.NewNop())

	t.Run("clamps limit and projects the filtering distance", func(t *testing.T) {
		mock := newMock(t)
		spec := nearbySpec(Filter{}, 5000)
		whereArgs := expectCount(mock, e, spec, 2)

		pageArgs := append([]any{center.Latitude, center.Longitude}, whereArgs...)
		mock.ExpectQuery(regexp.QuoteMeta("(earth_distance(ll_to_earth($1, $2), ll_to_earth(e.latitude, e.longitude))) AS distance FROM locations AS e WHERE") +
			".*" + regexp.QuoteMeta("ORDER BY distance ASC, e.id ASC LIMIT 40 OFFSET 0")).
			WithArgs(pageArgs...).
			WillReturnRows(pgxmock.NewRows(placeCol).
				AddRow(int64(1), "near", 31.231, 121.474, category(1), "swings", int64(9), now, now, 120.5).
				AddRow(int64(2), "far", 31.25, 121.48, category(3), "", int64(9), now, now, 2300.0))

		page, err := e.Query(ctx, mock, Request{Center: center, Radius: 5000, Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		require.Len(t, page.Hits, 2)
		assert.Equal(t, 120.5, page.Hits[0].Distance)
		assert.Equal(t, int32(1), *page.Hits[0].Place.Category)
		assert.Equal(t, []int64{1, 2}, page.IDs())
		assert.Equal(t, []int64{9, 9}, page.DiscovererIDs())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ordering is applied", func(t *testing.T) {
		mock := newMock(t)
		spec := nearbySpec(Filter{}, 5000)
		whereArgs := expectCount(mock, e, spec, 30)
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY e.updated_at DESC, e.id ASC LIMIT 5 OFFSET 20")).
			WithArgs(append([]any{center.Latitude, center.Longitude}, whereArgs...)...).
			WillReturnRows(pgxmock.NewRows(placeCol))

		page, err := e.Query(ctx, mock, Request{Center: center, Radius: 5000, Limit: 5, Offset: 20, Order: ordering.UpdatedDesc})
		require.NoError(t, err)
		assert.Equal(t, int64(30), page.Total)
		assert.NotNil(t, page.Hits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("storage failure surfaces as storage error", func(t *testing.T) {
		mock := newMock(t)
		spec := nearbySpec(Filter{}, 5000)
		whereArgs := expectCount(mock, e, spec, 3)
		mock.ExpectQuery("FROM locations AS e").
			WithArgs(append([]any{center.Latitude, center.Longitude}, whereArgs...)...).
			WillReturnError(errors.New("connection reset by peer"))

		_, err := e.Query(ctx, mock, Request{Center: center, Radius: 5000, Limit: 5})
		assert.ErrorIs(t, err, models.ErrStorage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQueryWarnsOnRowsOutsideRadius(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	core, logs := observer.New(zapcore.WarnLevel)
	e := NewEngine(Locations, 40, zap.New(core))
	mock := newMock(t)
	spec := nearbySpec(Filter{}, 1000)
	whereArgs := expectCount(mock, e, spec, 2)
	mock.ExpectQuery("FROM locations AS e").
		WithArgs(append([]any{center.Latitude, center.Longitude}, whereArgs...)...).
		WillReturnRows(pgxmock.NewRows(placeCol).
			AddRow(int64(1), "inside", 31.231, 121.474, category(1), "", int64(9), now, now, 90.0).
			AddRow(int64(2), "outside", 31.30, 121.47, category(1), "", int64(9), now, now, 900.0))

	page, err := e.Query(ctx, mock, Request{Center: center, Radius: 1000, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Hits, 2)

	warned := logs.FilterMessage("Row outside the requested radius").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(2), warned[0].ContextMap()["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryValidation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		kind Kind
		req  Request
	}{
		{"negative offset", Locations, Request{Center: center, Radius: 10, Limit: 5, Offset: -1}},
		{"negative radius", Locations, Request{Center: center, Radius: -1, Limit: 5}},
		{"bad center", Locations, Request{Center: models.Point{Latitude: 120}, Radius: 10, Limit: 5}},
		{"category on playings", Playings, Request{Filter: Filter{Category: category(1)}, Center: center, Radius: 10, Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			_, err := NewEngine(tt.kind, 40, zap.NewNop()).Query(ctx, mock, tt.req)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCountSQL(t *testing.T) {
	e := NewEngine(Playings, 40, zap.NewNop())
	owner := int64(4)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := e.CountSQL(nearbySpec(Filter{Name: " 50%_off ", OwnerID: &owner, CreatedAfter: &from}, 3000))
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT COUNT(*) FROM playings AS e WHERE (e.name ILIKE $1 AND e.discoverer_id = $2 AND e.created_at >= $3 AND (e.latitude BETWEEN $4 AND $5")
	assert.Equal(t, `%50\%\_off%`, args[0])
	assert.Equal(t, owner, args[1])
	assert.Equal(t, from, args[2])
	assert.Equal(t, 3000.0, args[len(args)-1])
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(Eatings, 40, zap.NewNop())

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		expectCount(mock, e, Spec{Center: center, Clauses: []Clause{IDIs(5)}}, 0)

		_, err := e.Lookup(ctx, mock, 5, center)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		now := time.Now()
		expectCount(mock, e, Spec{Center: center, Clauses: []Clause{IDIs(5)}}, 1)
		mock.ExpectQuery(regexp.QuoteMeta("NULL::integer AS category, ''::text AS description") + ".*" + regexp.QuoteMeta("FROM eatings AS e WHERE (e.id = $3)")).
			WithArgs(center.Latitude, center.Longitude, int64(5)).
			WillReturnRows(pgxmock.NewRows(placeCol).
				AddRow(int64(5), "noodles", 31.0, 121.0, nil, "", int64(2), now, now, 30123.4))

		hit, err := e.Lookup(ctx, mock, 5, center)
		require.NoError(t, err)
		assert.Equal(t, "noodles", hit.Place.Name)
		assert.Nil(t, hit.Place.Category)
		assert.Equal(t, 30123.4, hit.Distance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "café", NormalizeName("  café "))
	assert.Equal(t, "", NormalizeName("   "))
}
