package upload

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	// Upload stores r for owner and returns the new upload id.
	Upload(ctx context.Context, owner int64, r io.Reader) (int64, error)
	// Fetch opens the body of an upload with its content type.
	Fetch(ctx context.Context, id int64) (io.ReadCloser, string, error)
}

type ServiceImpl struct {
	repo   Repository
	storer Storer
	// upload rows never change once written, so fetches skip the lookup
	// for recently served ids
	rows   *cache.Cache
	logger *zap.Logger
}

func NewService(repo Repository, storer Storer, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		repo:   repo,
		storer: storer,
		rows:   cache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

func (s *ServiceImpl) Upload(ctx context.Context, owner int64, r io.Reader) (int64, error) {
	l := s.logger.With(zap.String("method", "Upload"), zap.Int64("ownerID", owner))

	code, err := s.storer.Save(ctx, r)
	if err != nil {
		l.Error("Failed to store upload body", zap.Error(err))
		return 0, err
	}
	u, err := s.repo.Insert(ctx, owner, code)
	if err != nil {
		if rmErr := s.storer.Remove(context.WithoutCancel(ctx), code); rmErr != nil {
			l.Warn("Failed to remove orphaned upload body", zap.String("fetchCode", code), zap.Error(rmErr))
		}
		return 0, err
	}
	l.Debug("Upload stored", zap.Int64("uploadID", u.ID), zap.String("fetchCode", code))
	return u.ID, nil
}

func (s *ServiceImpl) Fetch(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	u, err := s.lookup(ctx, id)
	if err != nil {
		return nil, "", err
	}
	body, mime, err := s.storer.Open(ctx, u.FetchCode)
	if err != nil {
		return nil, "", fmt.Errorf("upload %d: %w", id, err)
	}
	return body, mime, nil
}

func (s *ServiceImpl) lookup(ctx context.Context, id int64) (*models.Upload, error) {
	key := strconv.FormatInt(id, 10)
	if cached, found := s.rows.Get(key); found {
		return cached.(*models.Upload), nil
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.rows.Set(key, u, cache.DefaultExpiration)
	return u, nil
}
