package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/retailops/internal/order/domain"
)

// CreateOrderItem 下单明细，UnitPrice 为空时取商品当前售价
type CreateOrderItem struct {
	ProductID uint
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateOrderCommand 下单请求
type CreateOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	PaymentMethod   string
	// Status 为空时为 pending；收银台直接成交可传 completed
	Status string
	Notes  string
	Items  []CreateOrderItem
}

// ListOrdersQuery 订单列表查询
type ListOrdersQuery struct {
	Status        string
	PaymentMethod string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

type OrderItemDTO struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type OrderDTO struct {
	ID              uint            `json:"id"`
	Number          string          `json:"number"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Notes           string          `json:"notes"`
	CreatedBy       *uint           `json:"created_by"`
	Items           []OrderItemDTO  `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              o.ID,
		Number:          o.Number,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		PaymentMethod:   string(o.PaymentMethod),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Discount:        o.Discount,
		TotalAmount:     o.Total,
		Notes:           o.Notes,
		CreatedBy:       o.CreatedBy,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return dto
}
