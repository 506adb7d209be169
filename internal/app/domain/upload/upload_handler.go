package upload

import (
	"fmt"
	"net/http"
	"slices"

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

// Upload handles POST /api/uploads. Every file part of the multipart body
// becomes one upload; the response lists their ids in form order.
func (h *Handler) Upload(c *gin.Context) {
	caller, ok := h.Caller(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		h.Fail(c, fmt.Errorf("%w: %w", models.ErrValidation, err))
		return
	}

	fields := make([]string, 0, len(form.File))
	for name := range form.File {
		fields = append(fields, name)
	}
	slices.Sort(fields)

	ids := []int64{}
	for _, name := range fields {
		for _, fh := range form.File[name] {
			f, err := fh.Open()
			if err != nil {
				h.Fail(c, fmt.Errorf("%w: %w", models.ErrValidation, err))
				return
			}
			id, err := h.service.Upload(c.Request.Context(), caller, f)
			f.Close()
			if err != nil {
				h.Fail(c, err)
				return
			}
			ids = append(ids, id)
		}
	}
	c.JSON(http.StatusCreated, ids)
}

// Fetch handles GET /api/uploads/:id.
func (h *Handler) Fetch(c *gin.Context) {
	id, err := handlers.PathID(c, "id")
	if err != nil {
		h.Fail(c, err)
		return
	}
	body, mime, err := h.service.Fetch(c.Request.Context(), id)
	if err != nil {
		h.Fail(c, err)
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, -1, mime, body, nil)
}
