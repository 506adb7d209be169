package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/app/observability/metrics"
)

// bcrypt ignores input past 72 bytes; the salt takes 26 of them.
const (
	minPasswordLen = 6
	maxPasswordLen = 72 - 26
)

// Ensure implementation satisfies the interface
var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract.
type AuthService interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (int64, error)
	SignIn(ctx context.Context, req models.SignInRequest) (*models.SignInResponse, error)
}

type TokenIssuer interface {
	GenerateToken(userID int64) (string, error)
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger *zap.Logger
	repo   AuthRepo
	tokens TokenIssuer
	cost   int
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo AuthRepo, tokens TokenIssuer, logger *zap.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{logger: logger, repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

// SignUp stores a new user under a fresh salt.
func (s *AuthServiceImpl) SignUp(ctx context.Context, req models.SignUpRequest) (int64, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "AuthService.SignUp")
	defer span.End()
	l := s.logger.With(zap.String("method", "SignUp"))
	s.count(ctx, "signup")

	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Name == "" || req.Phone == "" {
		return 0, fmt.Errorf("name and phone are required: %w", models.ErrValidation)
	}
	if n := len(req.Password); n < minPasswordLen || n > maxPasswordLen {
		return 0, fmt.Errorf("password must be %d to %d bytes: %w", minPasswordLen, maxPasswordLen, models.ErrValidation)
	}

	salt := rand.Text()
	hashed, err := bcrypt.GenerateFromPassword([]byte(salt+req.Password), s.cost)
	if err != nil {
		l.Error("Failed to hash password", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Password hashing failed")
		return 0, fmt.Errorf("could not process password: %w", err)
	}

	id, err := s.repo.Register(ctx, &models.User{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: string(hashed),
		Salt:     salt,
		Avatar:   req.Avatar,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository registration failed")
		return 0, fmt.Errorf("registration failed: %w", err)
	}

	l.Info("Registration successful", zap.Int64("userID", id))
	span.SetAttributes(attribute.Int64("user.id", id))
	span.SetStatus(codes.Ok, "User registered")
	return id, nil
}

// SignIn checks the credentials and issues an access token. Unknown phone
// and wrong password are indistinguishable to the caller.
func (s *AuthServiceImpl) SignIn(ctx context.Context, req models.SignInRequest) (*models.SignInResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "AuthService.SignIn", trace.WithAttributes(
		attribute.String("phone", req.Phone),
	))
	defer span.End()
	l := s.logger.With(zap.String("method", "SignIn"))
	s.count(ctx, "signin")

	user, err := s.repo.GetUserByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			l.Warn("Sign-in for unknown phone")
			return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(user.Salt+req.Password)); err != nil {
		l.Warn("Password comparison failed", zap.Int64("userID", user.ID))
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		l.Error("Failed to generate token", zap.Int64("userID", user.ID), zap.Error(err))
		return nil, fmt.Errorf("app error generating token: %w", err)
	}

	l.Info("Sign-in successful", zap.Int64("userID", user.ID))
	span.SetStatus(codes.Ok, "")
	return &models.SignInResponse{ID: user.ID, Name: user.Name, Avatar: user.Avatar, Token: token}, nil
}

func (s *AuthServiceImpl) count(ctx context.Context, op string) {
	metrics.Get().AuthRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
