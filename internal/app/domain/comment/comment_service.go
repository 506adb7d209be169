package comment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ListOfLocation(ctx context.Context, f models.CommentFilter) (*models.ListResponse[models.Comment], error)
	Mine(ctx context.Context, userID, locationID int64) (*models.Comment, error)
	Create(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error)
	Upsert(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error)
	Aggregate(ctx context.Context, locationID int64) (*models.RankAggregate, error)
}

type ServiceImpl struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, logger: logger}
}

func (s *ServiceImpl) ListOfLocation(ctx context.Context, f models.CommentFilter) (*models.ListResponse[models.Comment], error) {
	list, total, err := s.repo.ListOfLocation(ctx, f)
	if err != nil {
		return nil, err
	}
	return &models.ListResponse[models.Comment]{List: list, Total: total}, nil
}

func (s *ServiceImpl) Mine(ctx context.Context, userID, locationID int64) (*models.Comment, error) {
	return s.repo.Mine(ctx, userID, locationID)
}

func (s *ServiceImpl) Create(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error) {
	req, err := validate(req)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.Create(ctx, userID, locationID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	s.logger.Info("Comment created", zap.Int64("userID", userID), zap.Int64("locationID", locationID), zap.Int64("commentID", res.CommentID))
	return res, nil
}

func (s *ServiceImpl) Upsert(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error) {
	req, err := validate(req)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.Upsert(ctx, userID, locationID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert comment: %w", err)
	}
	s.logger.Info("Comment upserted",
		zap.Int64("userID", userID),
		zap.Int64("locationID", locationID),
		zap.Bool("created", res.Created),
	)
	return res, nil
}

func (s *ServiceImpl) Aggregate(ctx context.Context, locationID int64) (*models.RankAggregate, error) {
	return s.repo.Aggregate(ctx, locationID)
}

func validate(req models.CommentRequest) (models.CommentRequest, error) {
	if req.Rank < models.MinRank || req.Rank > models.MaxRank {
		return req, fmt.Errorf("rank %d outside %d..%d: %w", req.Rank, models.MinRank, models.MaxRank, models.ErrValidation)
	}
	req.Content = strings.TrimSpace(req.Content)
	return req, nil
}
