package comment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/handlers"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

type Handler struct {
	*handlers.BaseHandler
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{BaseHandler: handlers.NewBaseHandler(logger), service: service}
}

// List handles GET /api/locations/:id/comments?rank_gt=&rank_lt=&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	limit, offset, err := handlers.Page(c)
	if err != nil {
		h.Fail(c, err)
		return
	}
	f := models.CommentFilter{LocationID: locationID, Limit: limit, Offset: offset}
	if f.RankGT, err = handlers.OptionalInt32(c, "rank_gt"); err != nil {
		h.Fail(c, err)
		return
	}
	if f.RankLT, err = handlers.OptionalInt32(c, "rank_lt"); err != nil {
		h.Fail(c, err)
		return
	}

	res, err := h.service.ListOfLocation(c.Request.Context(), f)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Mine handles GET /api/locations/:id/comment. A missing comment is a null body.
func (h *Handler) Mine(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	comment, err := h.service.Mine(c.Request.Context(), caller, locationID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Create handles POST /api/locations/:id/comments.
func (h *Handler) Create(c *gin.Context) {
	h.write(c, http.StatusCreated, h.service.Create)
}

// Upsert handles PUT /api/locations/:id/comments.
func (h *Handler) Upsert(c *gin.Context) {
	h.write(c, http.StatusOK, h.service.Upsert)
}

// Rank handles GET /api/locations/:id/rank.
func (h *Handler) Rank(c *gin.Context) {
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	agg, err := h.service.Aggregate(c.Request.Context(), locationID)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   agg.Total,
		"count":   agg.Count,
		"average": agg.Average(),
	})
}

type writeFunc func(ctx context.Context, userID, locationID int64, req models.CommentRequest) (*models.UpsertResult, error)

func (h *Handler) write(c *gin.Context, status int, fn writeFunc) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	var req models.CommentRequest
	if !h.Bind(c, &req) {
		return
	}
	res, err := fn(c.Request.Context(), caller, locationID, req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(status, res)
}
