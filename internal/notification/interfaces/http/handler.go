package http

import (
	"github.com/gin-gonic/gin"

	authhttp "github.com/wyfcoding/retailops/internal/auth/interfaces/http"
	"github.com/wyfcoding/retailops/internal/notification/application"
	"github.com/wyfcoding/retailops/pkg/response"
	"github.com/wyfcoding/retailops/pkg/utils"
)

// Handler 通知接口
type Handler struct {
	query *application.NotificationQuery
}

func NewHandler(query *application.NotificationQuery) *Handler {
	return &Handler{query: query}
}

// RegisterRoutes r 需已挂载 RequireAuth
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/notifications")
	g.GET("", h.List)
	g.POST("/mark-all-read", h.MarkAllRead)
}

func (h *Handler) List(c *gin.Context) {
	page := utils.PaginationFromQuery(c)
	unread := c.Query("unread") == "true" || c.Query("unread") == "1"
	items, total, err := h.query.List(c.Request.Context(), authhttp.MustPrincipal(c), unread, page.Limit(), page.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.query.MarkAllRead(c.Request.Context(), authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated_count": n})
}
