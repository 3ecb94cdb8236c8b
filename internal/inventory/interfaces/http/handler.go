package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	authhttp "github.com/wyfcoding/retailops/internal/auth/interfaces/http"
	"github.com/wyfcoding/retailops/internal/inventory/application"
	"github.com/wyfcoding/retailops/pkg/response"
	"github.com/wyfcoding/retailops/pkg/utils"
)

// Handler 库存流水接口
type Handler struct {
	svc *application.MovementService
}

func NewHandler(svc *application.MovementService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由，r 需已挂载 RequireAuth
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, writeMW ...gin.HandlerFunc) {
	g := r.Group("/inventory/movements")
	g.GET("", h.ListMovements)
	g.POST("", append(writeMW, h.CreateMovement)...)
}

type createMovementRequest struct {
	ProductID    uint   `json:"product_id" binding:"required,gt=0"`
	MovementType string `json:"movement_type" binding:"required,oneof=in out adjust"`
	Quantity     *int   `json:"quantity" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
	Notes        string `json:"notes" binding:"max=2000"`
}

func (h *Handler) CreateMovement(c *gin.Context) {
	var req createMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	dto, err := h.svc.Create(c.Request.Context(), application.CreateMovementCommand{
		ProductID:    req.ProductID,
		MovementType: req.MovementType,
		Quantity:     *req.Quantity,
		Reason:       req.Reason,
		Notes:        req.Notes,
	}, authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

func (h *Handler) ListMovements(c *gin.Context) {
	page := utils.PaginationFromQuery(c)
	q := application.ListMovementsQuery{
		MovementType: c.Query("movement_type"),
		Reason:       c.Query("reason"),
		Limit:        page.Limit(),
		Offset:       page.Offset(),
	}

	if v := c.Query("product_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid product_id", err.Error())
			return
		}
		pid := uint(id)
		q.ProductID = &pid
	}
	var err error
	if q.From, err = utils.ParseRangeStart(c.Query("from"), nil); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid from", err.Error())
		return
	}
	if q.To, err = utils.ParseRangeEnd(c.Query("to"), nil); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid to", err.Error())
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}
