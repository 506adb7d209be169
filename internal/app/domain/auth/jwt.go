package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-withbaby/internal/app/models"
	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
)

// Claims represents the JWT claims. Subject carries the user id.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.SecretKey),
		ttl:    cfg.AccessTokenTTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// GenerateToken generates a new JWT token
func (s *JWTService) GenerateToken(userID int64) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token and returns the user id it was issued to.
func (s *JWTService) ValidateToken(tokenString string) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, fmt.Errorf("invalid token: %w", models.ErrUnauthenticated)
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return 0, fmt.Errorf("subject does not match user id: %w", models.ErrUnauthenticated)
	}
	return claims.UserID, nil
}
