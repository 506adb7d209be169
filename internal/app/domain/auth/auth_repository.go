package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type AuthRepo interface {
	// GetUserByPhone fetches the user with its password hash and salt.
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	// Register stores a new user with a HASHED password. Returns new user ID.
	Register(ctx context.Context, user *models.User) (int64, error)
}

type PostgresAuthRepo struct {
	logger *zap.Logger
	db     database.Querier
}

func NewPostgresAuthRepo(db database.Querier, logger *zap.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{logger: logger, db: db}
}

// GetUserByPhone implements auth.AuthRepo.
func (r *PostgresAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	query := `SELECT id, name, phone, password, salt, avatar, created_at, updated_at FROM users WHERE phone = $1`
	err := r.db.QueryRow(ctx, query, phone).
		Scan(&u.ID, &u.Name, &u.Phone, &u.Password, &u.Salt, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		err = database.Classify(err)
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Error("Error fetching user by phone", zap.Error(err))
		}
		return nil, fmt.Errorf("user by phone: %w", err)
	}
	return &u, nil
}

// Register implements auth.AuthRepo. A taken phone number is a conflict.
func (r *PostgresAuthRepo) Register(ctx context.Context, user *models.User) (int64, error) {
	ctx, span := otel.Tracer("AuthRepository").Start(ctx, "PostgresAuthRepo.Register", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", "INSERT INTO users ..."),
	))
	defer span.End()

	var id int64
	query := `INSERT INTO users (name, phone, password, salt, avatar) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := r.db.QueryRow(ctx, query, user.Name, user.Phone, user.Password, user.Salt, user.Avatar).Scan(&id)
	if err != nil {
		err = database.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		if errors.Is(err, models.ErrConflict) {
			return 0, fmt.Errorf("phone already registered: %w", err)
		}
		r.logger.Error("Error inserting user", zap.Error(err))
		return 0, fmt.Errorf("database error registering user: %w", err)
	}

	span.SetStatus(codes.Ok, "User registered")
	return id, nil
}
