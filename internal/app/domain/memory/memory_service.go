// Package memory stores the titled notes parents leave at a location and
// lists them by distance from the caller.
package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/geo"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Create(ctx context.Context, caller, locationID int64, req models.CreateMemoryRequest) (int64, error)
	List(ctx context.Context, q ListQuery) (*models.ListResponse[models.MemoryItem], error)
}

type ServiceImpl struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, logger: logger}
}

func (s *ServiceImpl) Create(ctx context.Context, caller, locationID int64, req models.CreateMemoryRequest) (int64, error) {
	req.Title = nearby.NormalizeName(req.Title)
	if req.Title == "" {
		return 0, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	req.Content = strings.TrimSpace(req.Content)

	id, err := s.repo.Create(ctx, caller, locationID, req)
	if err != nil {
		return 0, fmt.Errorf("failed to create memory: %w", err)
	}
	s.logger.Info("Memory created", zap.Int64("userID", caller), zap.Int64("locationID", locationID), zap.Int64("memoryID", id))
	return id, nil
}

func (s *ServiceImpl) List(ctx context.Context, q ListQuery) (*models.ListResponse[models.MemoryItem], error) {
	if err := geo.ValidatePoint(q.Center); err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("offset %d must not be negative: %w", q.Offset, models.ErrValidation)
	}
	return s.repo.List(ctx, q)
}
