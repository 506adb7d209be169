package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/observability/metrics"
)

type contextKey string

const CallerIDKey contextKey = "callerID"

// TokenValidator resolves a bearer token to the id of the user it was issued to.
type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityMiddleware adds security headers
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// MetricsMiddleware records the request count and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m := metrics.Get()
		m.HTTPRequestsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		))
		m.HTTPRequestDuration.Record(c.Request.Context(), time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
		))
	}
}

// AuthMiddleware requires a valid bearer token and stores the caller id on
// the context. Logging of the request itself is handled by ginzap.
func AuthMiddleware(tokens TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		userID, err := tokens.ValidateToken(token)
		if err != nil {
			logger.Debug("Rejected bearer token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(string(CallerIDKey), userID)
		c.Next()
	}
}

// CallerID returns the authenticated user id set by AuthMiddleware.
func CallerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(string(CallerIDKey))
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
