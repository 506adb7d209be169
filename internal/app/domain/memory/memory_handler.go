package memory

import (
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

// List handles GET /api/locations/:id/memories.
func (h *Handler) List(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		h.Fail(c, err)
		return
	}
	res, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/locations/:id/memories.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	var req models.CreateMemoryRequest
	if !h.Bind(c, &req) {
		return
	}
	id, err := h.service.Create(c.Request.Context(), caller, locationID, req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func parseListQuery(c *gin.Context) (ListQuery, error) {
	var q ListQuery
	locationID, err := handlers.PathID(c, "id")
	if err != nil {
		return q, err
	}
	q.Filter = models.MemoryFilter{LocationID: &locationID, Title: c.Query("title")}
	if q.Filter.OwnerID, err = handlers.OptionalInt64(c, "owner"); err != nil {
		return q, err
	}
	if q.Filter.CreatedAfter, err = handlers.OptionalTime(c, "created_after"); err != nil {
		return q, err
	}
	if q.Filter.CreatedBefore, err = handlers.OptionalTime(c, "created_before"); err != nil {
		return q, err
	}
	if q.Center, err = handlers.Center(c); err != nil {
		return q, err
	}
	if q.Order, err = handlers.Order(c); err != nil {
		return q, err
	}
	q.Limit, q.Offset, err = handlers.Page(c)
	return q, err
}
