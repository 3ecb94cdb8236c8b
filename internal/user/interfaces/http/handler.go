package http

import (
	"github.com/gin-gonic/gin"

	authhttp "github.com/wyfcoding/retailops/internal/auth/interfaces/http"
	"github.com/wyfcoding/retailops/internal/user/application"
	"github.com/wyfcoding/retailops/pkg/response"
)

// Handler 当前用户接口
type Handler struct {
	svc *application.UserService
}

func NewHandler(svc *application.UserService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由，r 需已挂载 RequireAuth
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/users/me")
	g.GET("", h.Me)
	g.PUT("/push-token", h.UpdatePushToken)
}

func (h *Handler) Me(c *gin.Context) {
	p := authhttp.MustPrincipal(c)
	dto, err := h.svc.Me(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

type pushTokenRequest struct {
	Token string `json:"fcm_token" binding:"max=255"`
}

func (h *Handler) UpdatePushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, "invalid request body", err.Error())
		return
	}
	p := authhttp.MustPrincipal(c)
	if err := h.svc.RegisterPushToken(c.Request.Context(), p.UserID, req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"registered": req.Token != ""})
}
