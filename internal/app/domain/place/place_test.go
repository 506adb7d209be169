package place

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/hydrate"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/middleware"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var here = models.Point{Latitude: 22.5431, Longitude: 114.0579}

func newRepo(t *testing.T, kind nearby.Kind, rel hydrate.PhotoRelation) (*PostgresRepository, *nearby.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	engine := nearby.NewEngine(kind, 40, zap.NewNop())
	return NewPostgresRepository(database.New(mock, time.Second, zap.NewNop()), engine, rel, zap.NewNop()), engine, mock
}

func TestNearbyPlayings(t *testing.T) {
	repo, engine, mock := newRepo(t, nearby.Playings, hydrate.PlayingPhotos)
	now := time.Now()
	spec := nearby.Spec{Center: here, Clauses: []nearby.Clause{nearby.Within{Center: here, Radius: 30000}}}
	countSQL, whereArgs, err := engine.CountSQL(spec)
	require.NoError(t, err)

	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("^" + regexp.QuoteMeta(countSQL) + "$").
		WithArgs(whereArgs...).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(regexp.QuoteMeta("NULL::integer AS category") + ".*" + regexp.QuoteMeta("FROM playings AS e") + ".*" + regexp.QuoteMeta("LIMIT 2 OFFSET 10")).
		WithArgs(append([]any{here.Latitude, here.Longitude}, whereArgs...)...).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "category", "description", "discoverer_id", "created_at", "updated_at", "distance"}).
			AddRow(int64(4), "ball pit", 22.54, 114.05, nil, "", int64(1), now, now, 700.0).
			AddRow(int64(2), "trampoline", 22.55, 114.06, nil, "", int64(1), now, now, 1300.0))
	mock.ExpectQuery("FROM users WHERE id = ANY").
		WithArgs([]int64{1}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "avatar"}).AddRow(int64(1), "mo", nil))
	mock.ExpectQuery("FROM playing_upload_rels AS r").
		WithArgs([]int64{4, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"playing_id", "id", "fetch_code", "owner_id", "created_at", "updated_at"}).
			AddRow(int64(2), int64(7), "f7", int64(1), now, now))
	mock.ExpectCommit()

	service := NewService(repo, 30000, zap.NewNop())
	res, err := service.Nearby(context.Background(), NearbyQuery{Center: here, Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Total)
	require.Len(t, res.List, 2)
	assert.Nil(t, res.List[0].Place.Category)
	assert.Empty(t, res.List[0].Photos)
	assert.Equal(t, "f7", res.List[1].Photos[0].FetchCode)
	assert.Same(t, res.List[0].Discoverer, res.List[1].Discoverer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEating(t *testing.T) {
	ctx := context.Background()
	req := models.CreatePlaceRequest{Name: "noodle bar", Latitude: here.Latitude, Longitude: here.Longitude, Photos: []int64{5, 6}}

	t.Run("unknown photo", func(t *testing.T) {
		repo, _, mock := newRepo(t, nearby.Eatings, hydrate.EatingPhotos)
		mock.ExpectBegin()
		mock.ExpectQuery("FROM uploads WHERE id = ANY").
			WithArgs([]int64{5, 6}).
			WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id"}).AddRow(int64(5), int64(3)))
		mock.ExpectRollback()

		_, err := repo.Create(ctx, 3, req)
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts and attaches", func(t *testing.T) {
		repo, _, mock := newRepo(t, nearby.Eatings, hydrate.EatingPhotos)
		mock.ExpectBegin()
		mock.ExpectQuery("FROM uploads WHERE id = ANY").
			WithArgs([]int64{5, 6}).
			WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id"}).AddRow(int64(5), int64(3)).AddRow(int64(6), int64(3)))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO eatings (name, latitude, longitude, discoverer_id)")).
			WithArgs("noodle bar", here.Latitude, here.Longitude, int64(3)).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(40)))
		mock.ExpectExec("INSERT INTO eating_upload_rels \\(eating_id, upload_id\\)").
			WithArgs(int64(40), []int64{5, 6}).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		mock.ExpectCommit()

		id, err := repo.Create(ctx, 3, req)
		require.NoError(t, err)
		assert.Equal(t, int64(40), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Nearby(ctx context.Context, req nearby.Request) (*models.ListResponse[models.NearbyPlace], error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListResponse[models.NearbyPlace]), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, owner int64, req models.CreatePlaceRequest) (int64, error) {
	args := m.Called(ctx, owner, req)
	return args.Get(0).(int64), args.Error(1)
}

func TestHandlerPaging(t *testing.T) {
	empty := &models.ListResponse[models.NearbyPlace]{List: []models.NearbyPlace{}}
	tests := []struct {
		name   string
		paging Paging
		radius float64
		path   string
		want   func(nearby.Request) bool
		status int
	}{
		{
			name: "playings page and size", paging: PageSize, radius: 30000,
			path: "/nearby?latitude=1&longitude=2&page=3&size=5",
			want: func(r nearby.Request) bool {
				return r.Limit == 5 && r.Offset == 10 && r.Radius == 30000
			},
			status: http.StatusOK,
		},
		{
			name: "page zero", paging: PageSize, radius: 30000,
			path:   "/nearby?latitude=1&longitude=2&page=0",
			status: http.StatusBadRequest,
		},
		{
			name: "eatings caller radius", paging: LimitOffset,
			path: "/nearby?latitude=1&longitude=2&radius=800&limit=4&offset=8",
			want: func(r nearby.Request) bool {
				return r.Limit == 4 && r.Offset == 8 && r.Radius == 800
			},
			status: http.StatusOK,
		},
		{
			name: "eatings without radius", paging: LimitOffset,
			path:   "/nearby?latitude=1&longitude=2",
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			if tt.want != nil {
				repo.On("Nearby", mock.Anything, mock.MatchedBy(tt.want)).Return(empty, nil)
			}
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.GET("/nearby", NewHandler(NewService(repo, tt.radius, zap.NewNop()), tt.paging, zap.NewNop()).Nearby)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			repo.AssertExpectations(t)
		})
	}
}

func TestHandlerCreate(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Create", mock.Anything, int64(3), models.CreatePlaceRequest{Name: "noodle bar", Latitude: 1, Longitude: 2}).
		Return(int64(40), nil).Once()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(middleware.CallerIDKey), int64(3))
		c.Next()
	})
	r.POST("/eatings", NewHandler(NewService(repo, 0, zap.NewNop()), LimitOffset, zap.NewNop()).Create)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/eatings", strings.NewReader(`{"name":" noodle bar ","latitude":1,"longitude":2}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":40}`, w.Body.String())
	repo.AssertExpectations(t)
}
