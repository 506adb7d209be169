package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/domain/auth"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/comment"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/hydrate"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/location"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/memory"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/nearby"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/place"
	"github.com/FACorreiaa/go-withbaby/internal/app/domain/upload"
	"github.com/FACorreiaa/go-withbaby/internal/app/middleware"
	database "github.com/FACorreiaa/go-withbaby/internal/db"
	"github.com/FACorreiaa/go-withbaby/internal/pkg/config"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AppHandlers struct {
	Auth      *auth.AuthHandlers
	Locations *location.Handler
	Comments  *comment.Handler
	Memories  *memory.Handler
	Playings  *place.Handler
	Eatings   *place.Handler
	Uploads   *upload.Handler
	Tokens    middleware.TokenValidator
}

// Setup builds every repository, service and handler on db and registers the
// HTTP surface on r.
func Setup(r *gin.Engine, db *database.DB, pinger Pinger, cfg *config.Config, log *zap.Logger) error {
	handlers, err := setupDependencies(db, cfg, log)
	if err != nil {
		return err
	}
	setupRouter(r, handlers, pinger, log)
	return nil
}

func setupDependencies(db *database.DB, cfg *config.Config, log *zap.Logger) (*AppHandlers, error) {
	maxPage := cfg.Nearby.MaxPageSize

	tokens := auth.NewJWTService(cfg.JWT)
	authRepo := auth.NewPostgresAuthRepo(db, log)
	authService := auth.NewAuthService(authRepo, tokens, log)

	storer, err := upload.NewLocalStorer(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	uploadService := upload.NewService(upload.NewPostgresRepository(db, log), storer, log)

	locationRepo := location.NewPostgresRepository(db, nearby.NewEngine(nearby.Locations, maxPage, log), log)
	locationService := location.NewService(locationRepo, cfg.Nearby, log)

	commentService := comment.NewService(comment.NewPostgresRepository(db, maxPage, log), log)
	memoryService := memory.NewService(memory.NewPostgresRepository(db, maxPage, log), log)

	playingRepo := place.NewPostgresRepository(db, nearby.NewEngine(nearby.Playings, maxPage, log), hydrate.PlayingPhotos, log)
	eatingRepo := place.NewPostgresRepository(db, nearby.NewEngine(nearby.Eatings, maxPage, log), hydrate.EatingPhotos, log)

	return &AppHandlers{
		Auth:      auth.NewAuthHandlers(authService, log),
		Locations: location.NewHandler(locationService, log),
		Comments:  comment.NewHandler(commentService, log),
		Memories:  memory.NewHandler(memoryService, log),
		Playings:  place.NewHandler(place.NewService(playingRepo, cfg.Nearby.PlayingRadius, log), place.PageSize, log),
		Eatings:   place.NewHandler(place.NewService(eatingRepo, 0, log), place.LimitOffset, log),
		Uploads:   upload.NewHandler(uploadService, log),
		Tokens:    tokens,
	}, nil
}

func setupRouter(r *gin.Engine, h *AppHandlers, pinger Pinger, log *zap.Logger) {
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	userGroup := r.Group("/user")
	{
		userGroup.POST("/signup", h.Auth.SignUp)
		userGroup.POST("/signin", h.Auth.SignIn)
	}

	requireAuth := middleware.AuthMiddleware(h.Tokens, log)

	api := r.Group("/api")
	{
		api.GET("/locations", h.Locations.Nearby)
		api.GET("/locations/:id", h.Locations.Detail)
		api.GET("/locations/:id/comments", h.Comments.List)
		api.GET("/locations/:id/rank", h.Comments.Rank)
		api.GET("/locations/:id/memories", h.Memories.List)
		api.GET("/playings", h.Playings.Nearby)
		api.GET("/eatings", h.Eatings.Nearby)
		api.GET("/uploads/:id", h.Uploads.Fetch)
	}

	protected := api.Group("", requireAuth)
	{
		protected.GET("/locations/my", h.Locations.Mine)
		protected.POST("/locations", h.Locations.Create)
		protected.PUT("/locations/:id", h.Locations.Update)
		protected.POST("/locations/:id/equipments", h.Locations.AddEquipment)

		protected.GET("/locations/:id/comment", h.Comments.Mine)
		protected.POST("/locations/:id/comments", h.Comments.Create)
		protected.PUT("/locations/:id/comments", h.Comments.Upsert)

		protected.POST("/locations/:id/memories", h.Memories.Create)

		protected.POST("/playings", h.Playings.Create)
		protected.POST("/eatings", h.Eatings.Create)

		protected.POST("/uploads", h.Uploads.Upload)
	}
}
