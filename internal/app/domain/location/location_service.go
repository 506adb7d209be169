package location

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
)

var _ Service = (*ServiceImpl)(nil)

// NearbyQuery is a nearby listing request as received from a caller.
type NearbyQuery struct {
	Center models.Point
	Filter nearby.Filter
	Order  ordering.Key
	Limit  int
	Offset int
}

type Service interface {
	Nearby(ctx context.Context, q NearbyQuery) (*models.ListResponse[models.NearbyLocation], error)
	Mine(ctx context.Context, caller int64, q NearbyQuery) (*models.ListResponse[models.NearbyLocation], error)
	Detail(ctx context.Context, id int64, center models.Point) (*models.NearbyLocation, error)
	Create(ctx context.Context, caller int64, req models.CreateLocationRequest) (int64, error)
	Update(ctx context.Context, caller, id int64, req models.UpdateLocationRequest) error
	AddEquipment(ctx context.Context, caller, locationID int64, req models.AddEquipmentRequest) (int64, error)
}

type ServiceImpl struct {
	repo   Repository
	cfg    config.NearbyConfig
	logger *zap.Logger
}

func NewService(repo Repository, cfg config.NearbyConfig, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, cfg: cfg, logger: logger}
}

func (s *ServiceImpl) Nearby(ctx context.Context, q NearbyQuery) (*models.ListResponse[models.NearbyLocation], error) {
	return s.repo.Nearby(ctx, nearby.Request{
		Filter: q.Filter,
		Center: q.Center,
		Radius: s.cfg.LocationRadius,
		Order:  q.Order,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (s *ServiceImpl) Mine(ctx context.Context, caller int64, q NearbyQuery) (*models.ListResponse[models.NearbyLocation], error) {
	return s.repo.Mine(ctx, caller, q.Center, q.Order, q.Limit, q.Offset)
}

func (s *ServiceImpl) Detail(ctx context.Context, id int64, center models.Point) (*models.NearbyLocation, error) {
	return s.repo.Detail(ctx, id, center)
}

func (s *ServiceImpl) Create(ctx context.Context, caller int64, req models.CreateLocationRequest) (int64, error) {
	l := s.logger.With(zap.String("method", "Create"), zap.Int64("userID", caller))

	name, err := validPlace(req.Name, req.Latitude, req.Longitude)
	if err != nil {
		return 0, err
	}
	req.Name = name
	req.Description = strings.TrimSpace(req.Description)

	id, err := s.repo.Create(ctx, caller, req, s.cfg.DuplicateRadius)
	if err != nil {
		l.Warn("Location not created", zap.Error(err))
		return 0, fmt.Errorf("failed to create location: %w", err)
	}
	l.Info("Location created", zap.Int64("locationID", id))
	return id, nil
}

func (s *ServiceImpl) Update(ctx context.Context, caller, id int64, req models.UpdateLocationRequest) error {
	name, err := validPlace(req.Name, req.Latitude, req.Longitude)
	if err != nil {
		return err
	}
	req.Name = name
	req.Description = strings.TrimSpace(req.Description)

	if err := s.repo.Update(ctx, caller, id, req); err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	s.logger.Info("Location updated", zap.Int64("userID", caller), zap.Int64("locationID", id), zap.Int("photos", len(req.Photos)))
	return nil
}

func (s *ServiceImpl) AddEquipment(ctx context.Context, caller, locationID int64, req models.AddEquipmentRequest) (int64, error) {
	req.Name = nearby.NormalizeName(req.Name)
	if req.Name == "" {
		return 0, fmt.Errorf("equipment name is required: %w", models.ErrValidation)
	}
	return s.repo.AddEquipment(ctx, caller, locationID, req)
}

// validPlace normalises a place name and validates its coordinates.
func validPlace(name string, lat, lon float64) (string, error) {
	name = nearby.NormalizeName(name)
	if name == "" {
		return "", fmt.Errorf("name is required: %w", models.ErrValidation)
	}
	if err := geo.ValidatePoint(models.Point{Latitude: lat, Longitude: lon}); err != nil {
		return "", err
	}
	return name, nil
}
