package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/ordering"
	"github.com/FACorreiaa/go-withbaby/internal/app/middleware"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

const DefaultPageSize = 10

// BaseHandler carries the request plumbing shared by every JSON handler.
type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// StatusOf maps the domain error taxonomy onto HTTP status codes.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrConnectionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as {"error": ...}. Server-side failures are logged and
// their cause is not echoed to the client.
func (h *BaseHandler) Fail(c *gin.Context, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()), zap.Int("status", status))
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Caller returns the authenticated user id. It writes a 401 and returns false
// when the route was not behind AuthMiddleware.
func (h *BaseHandler) Caller(c *gin.Context) (int64, bool) {
	id, ok := middleware.CallerID(c)
	if !ok {
		h.Fail(c, models.ErrUnauthenticated)
	}
	return id, ok
}

// Bind decodes the JSON body into dst, reporting decode failures as validation errors.
func (h *BaseHandler) Bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.Fail(c, fmt.Errorf("%w: %w", models.ErrValidation, err))
		return false
	}
	return true
}

// PathID parses a positive integer path parameter.
func PathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, c.Param(name), models.ErrValidation)
	}
	return id, nil
}

// Center reads the required latitude and longitude query parameters.
func Center(c *gin.Context) (models.Point, error) {
	lat, err := queryFloat(c, "latitude")
	if err != nil {
		return models.Point{}, err
	}
	lon, err := queryFloat(c, "longitude")
	if err != nil {
		return models.Point{}, err
	}
	return models.Point{Latitude: lat, Longitude: lon}, nil
}

// Page reads limit/offset query parameters. Absent limit means DefaultPageSize.
func Page(c *gin.Context) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit", DefaultPageSize); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset", 0); err != nil {
		return 0, 0, err
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must not be negative: %w", models.ErrValidation)
	}
	return limit, offset, nil
}

// PageSize reads 1-based page/size query parameters and converts them to limit/offset.
func PageSize(c *gin.Context) (limit, offset int, err error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be at least 1: %w", models.ErrValidation)
	}
	size, err := queryInt(c, "size", DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return size, (page - 1) * max(size, 0), nil
}

// Order reads the optional ordering query parameter.
func Order(c *gin.Context) (ordering.Key, error) {
	raw := c.Query("ordering")
	if raw == "" {
		return ordering.Default, nil
	}
	return ordering.Parse(raw)
}

// OptionalInt64 parses an optional integer query parameter.
func OptionalInt64(c *gin.Context, name string) (*int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}
	return &v, nil
}

// OptionalInt32 parses an optional 32-bit integer query parameter.
func OptionalInt32(c *gin.Context, name string) (*int32, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}
	v32 := int32(v)
	return &v32, nil
}

// OptionalFloat parses an optional float query parameter.
func OptionalFloat(c *gin.Context, name string) (*float64, error) {
	if _, ok := c.GetQuery(name); !ok {
		return nil, nil
	}
	v, err := queryFloat(c, name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryFloat(c *gin.Context, name string) (float64, error) {
	raw := c.Query(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}
	return v, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}
	return v, nil
}

// OptionalTime parses an optional RFC 3339 query parameter.
func OptionalTime(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, models.ErrValidation)
	}
	return &t, nil
}

// Filter reads the optional nearby filters: name, category, discoverer,
// created_after and created_before.
func Filter(c *gin.Context) (nearby.Filter, error) {
	f := nearby.Filter{Name: c.Query("name")}
	var err error
	if f.Category, err = OptionalInt32(c, "category"); err != nil {
		return f, err
	}
	if f.OwnerID, err = OptionalInt64(c, "discoverer"); err != nil {
		return f, err
	}
	if f.CreatedAfter, err = OptionalTime(c, "created_after"); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = OptionalTime(c, "created_before"); err != nil {
		return f, err
	}
	return f, nil
}
