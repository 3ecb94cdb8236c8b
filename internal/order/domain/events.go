package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderCreatedEventType       = "order.created"
	OrderStatusChangedEventType = "order.status_changed"
)

// OrderCreatedEvent 订单创建事件，仅在事务提交后分发
type OrderCreatedEvent struct {
	OrderID      uint            `json:"order_id"`
	Number       string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total_amount"`
	Status       Status          `json:"status"`
	CreatedBy    *uint           `json:"created_by,omitempty"`
	OccurredOn   time.Time       `json:"occurred_on"`
}

// OrderStatusChangedEvent 订单状态变更事件
type OrderStatusChangedEvent struct {
	OrderID    uint      `json:"order_id"`
	Number     string    `json:"order_number"`
	OldStatus  Status    `json:"old_status"`
	NewStatus  Status    `json:"new_status"`
	CreatedBy  *uint     `json:"created_by,omitempty"`
	OccurredOn time.Time `json:"occurred_on"`
}
