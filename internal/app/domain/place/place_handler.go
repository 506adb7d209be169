package place

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/handlers"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

// Paging selects how a nearby endpoint reads its page window.
type Paging int

const (
	// LimitOffset reads limit and offset.
	LimitOffset Paging = iota
	// PageSize reads a 1-based page and a size.
	PageSize
)

type Handler struct {
	*handlers.BaseHandler
	service Service
	paging  Paging
}

func NewHandler(service Service, paging Paging, logger *zap.Logger) *Handler {
	return &Handler{BaseHandler: handlers.NewBaseHandler(logger), service: service, paging: paging}
}

// Nearby handles GET /api/playings and GET /api/eatings.
func (h *Handler) Nearby(c *gin.Context) {
	q, err := h.parseNearbyQuery(c)
	if err != nil {
		h.Fail(c, err)
		return
	}
	res, err := h.service.Nearby(c.Request.Context(), q)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/playings and POST /api/eatings.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	var req models.CreatePlaceRequest
	if !h.Bind(c, &req) {
		return
	}
	id, err := h.service.Create(c.Request.Context(), caller, req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) parseNearbyQuery(c *gin.Context) (NearbyQuery, error) {
	var (
		q   NearbyQuery
		err error
	)
	if q.Center, err = handlers.Center(c); err != nil {
		return q, err
	}
	if q.Filter, err = handlers.Filter(c); err != nil {
		return q, err
	}
	if q.Order, err = handlers.Order(c); err != nil {
		return q, err
	}
	if q.Radius, err = handlers.OptionalFloat(c, "radius"); err != nil {
		return q, err
	}
	if h.paging == PageSize {
		q.Limit, q.Offset, err = handlers.PageSize(c)
	} else {
		q.Limit, q.Offset, err = handlers.Page(c)
	}
	return q, err
}
