package place

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

// NearbyQuery is a nearby listing request. A nil Radius falls back to the
// service default.
type NearbyQuery struct {
	Center models.Point
	Filter nearby.Filter
	Radius *float64
	Order  ordering.Key
	Limit  int
	Offset int
}

type Service interface {
	Nearby(ctx context.Context, q NearbyQuery) (*models.ListResponse[models.NearbyPlace], error)
	Create(ctx context.Context, caller int64, req models.CreatePlaceRequest) (int64, error)
}

type ServiceImpl struct {
	repo          Repository
	defaultRadius float64
	logger        *zap.Logger
}

// NewService returns a place service. A zero defaultRadius makes the radius
// mandatory on every nearby query.
func NewService(repo Repository, defaultRadius float64, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, defaultRadius: defaultRadius, logger: logger}
}

func (s *ServiceImpl) Nearby(ctx context.Context, q NearbyQuery) (*models.ListResponse[models.NearbyPlace], error) {
	radius := s.defaultRadius
	switch {
	case q.Radius != nil:
		radius = *q.Radius
	case radius == 0:
		return nil, fmt.Errorf("radius is required: %w", models.ErrValidation)
	}
	return s.repo.Nearby(ctx, nearby.Request{
		Filter: q.Filter,
		Center: q.Center,
		Radius: radius,
		Order:  q.Order,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (s *ServiceImpl) Create(ctx context.Context, caller int64, req models.CreatePlaceRequest) (int64, error) {
	req.Name = nearby.NormalizeName(req.Name)
	if req.Name == "" {
		return 0, fmt.Errorf("name is required: %w", models.ErrValidation)
	}
	if err := geo.ValidatePoint(models.Point{Latitude: req.Latitude, Longitude: req.Longitude}); err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, caller, req)
	if err != nil {
		return 0, fmt.Errorf("failed to create place: %w", err)
	}
	s.logger.Info("Place created", zap.Int64("userID", caller), zap.Int64("placeID", id))
	return id, nil
}
