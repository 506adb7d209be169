package location

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

// Nearby handles GET /api/locations.
func (h *Handler) Nearby(c *gin.Context) {
	q, err := parseNearbyQuery(c)
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

// Mine handles GET /api/locations/my.
func (h *Handler) Mine(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	q, err := parseNearbyQuery(c)
	if err != nil {
		h.Fail(c, err)
		return
	}
	res, err := h.service.Mine(c.Request.Context(), caller, q)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Detail handles GET /api/locations/:id?latitude=&longitude=
func (h *Handler) Detail(c *gin.Context) {
	id, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	center, err := handlers.Center(c)
	if err != nil {
		h.Fail(c, err)
		return
	}
	res, err := h.service.Detail(c.Request.Context(), id, center)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/locations.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	var req models.CreateLocationRequest
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

// Update handles PUT /api/locations/:id.
func (h *Handler) Update(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	id, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	var req models.UpdateLocationRequest
	if !h.Bind(c, &req) {
		return
	}
	if err := h.service.Update(c.Request.Context(), caller, id, req); err != nil {
		h.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddEquipment handles POST /api/locations/:id/equipments.
func (h *Handler) AddEquipment(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	id, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	var req models.AddEquipmentRequest
	if !h.Bind(c, &req) {
		return
	}
	equipmentID, err := h.service.AddEquipment(c.Request.Context(), caller, id, req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": equipmentID})
}

func parseNearbyQuery(c *gin.Context) (NearbyQuery, error) {
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
	q.Limit, q.Offset, err = handlers.Page(c)
	return q, err
}
