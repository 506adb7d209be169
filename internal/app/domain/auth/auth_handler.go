package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-withbaby/internal/app/handlers"
	"github.com/FACorreiaa/go-withbaby/internal/app/models"
)

type AuthHandlers struct {
	*handlers.BaseHandler
	authService AuthService
}

func NewAuthHandlers(authService AuthService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		BaseHandler: handlers.NewBaseHandler(logger),
		authService: authService,
	}
}

// SignUp handles POST /user/signup.
func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if !h.Bind(c, &req) {
		return
	}
	id, err := h.authService.SignUp(c.Request.Context(), req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// SignIn handles POST /user/signin.
func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if !h.Bind(c, &req) {
		return
	}
	res, err := h.authService.SignIn(c.Request.Context(), req)
	if err != nil {
		h.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
