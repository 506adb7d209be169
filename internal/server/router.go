package server

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/go-withbaby/internal/app/middleware"
	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
	"github.com/FACorreiaa/go-withbaby/internal/routes"
)

// maxMultipartMemory bounds the part of an upload held in memory.
const maxMultipartMemory = 8 << 20

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(s *Server, cfg *config.Config, logger *zap.Logger) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
		SkipPaths:  []string{"/healthz"},
	}))
	r.Use(ginzap.RecoveryWithZap(logger, true))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SecurityMiddleware())

	if err := routes.Setup(r, s.DB(), s.Pool(), cfg, logger); err != nil {
		return nil, err
	}
	return r, nil
}

// zapContextFunc adds the request id and the OTEL trace and span ids to
// every access log line.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.Writer.Header().Get("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		if id, ok := middleware.CallerID(c); ok {
			fields = append(fields, zap.Int64("user_id", id))
		}
		return fields
	}
}
