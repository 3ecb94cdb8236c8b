package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	authhttp "github.com/wyfcoding/retailops/internal/auth/interfaces/http"
	"github.com/wyfcoding/retailops/internal/order/application"
	"github.com/wyfcoding/retailops/pkg/response"
	"github.com/wyfcoding/retailops/pkg/utils"
)

// OrderHandler 订单 HTTP 接口
type OrderHandler struct {
	manager *application.OrderManager
	query   *application.OrderQuery
}

func NewOrderHandler(manager *application.OrderManager, query *application.OrderQuery) *OrderHandler {
	return &OrderHandler{manager: manager, query: query}
}

// RegisterRoutes 注册路由，r 需已挂载 RequireAuth
func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup, writeMW ...gin.HandlerFunc) {
	g := r.Group("/orders")
	g.GET("", h.ListOrders)
	g.GET("/:id", h.GetOrder)
	g.POST("", append(writeMW, h.CreateOrder)...)
	g.PATCH("/:id", append(writeMW, h.UpdateStatus)...)
}

type orderItemRequest struct {
	ProductID uint             `json:"product_id" binding:"required,gt=0"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	CustomerName    string             `json:"customer_name" binding:"required,max=255"`
	CustomerEmail   string             `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone   string             `json:"customer_phone" binding:"max=32"`
	CustomerAddress string             `json:"customer_address"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	Status          string             `json:"status"`
	Notes           string             `json:"notes" binding:"max=2000"`
	Items           []orderItemRequest `json:"items" binding:"dive"`
}

// CreateOrder 下单，items 为空时由应用层返回 empty_order
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cmd := application.CreateOrderCommand{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          req.Status,
		Notes:           req.Notes,
		Items:           make([]application.CreateOrderItem, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, application.CreateOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	dto, err := h.manager.CreateOrder(c.Request.Context(), cmd, authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 部分更新，仅支持 status 字段
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	dto, err := h.manager.UpdateStatus(c.Request.Context(), id, req.Status, authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	dto, err := h.query.Get(c.Request.Context(), id, authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	page := utils.PaginationFromQuery(c)
	q := application.ListOrdersQuery{
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		Limit:         page.Limit(),
		Offset:        page.Offset(),
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

	items, total, err := h.query.List(c.Request.Context(), q, authhttp.MustPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, items, total, page.Page, page.PageSize)
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return 0, false
	}
	return uint(id), true
}
