// Package domain 实时推送的分组与帧格式
package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 帧类型
const (
	FrameOrderNotification = "order_notification"
	FrameStatusUpdate      = "status_update"
	FrameNotification      = "notification"
)

// AdminOrdersGroup 所有在线员工
const AdminOrdersGroup = "admin_orders"

// UserOrdersGroup 某位顾客的订单频道
func UserOrdersGroup(userID uint) string {
	return "user_" + strconv.FormatUint(uint64(userID), 10) + "_orders"
}

// UserGroup 某位用户的通用通知频道
func UserGroup(userID uint) string {
	return "user_" + strconv.FormatUint(uint64(userID), 10)
}

// GroupKind 指标标签用，把按用户区分的分组归并
func GroupKind(group string) string {
	switch {
	case group == AdminOrdersGroup:
		return "admin_orders"
	case strings.HasSuffix(group, "_orders"):
		return "user_orders"
	default:
		return "user"
	}
}

// OrderMessage 订单帧负载
type OrderMessage struct {
	NotificationType string           `json:"notification_type"`
	OrderID          uint             `json:"order_id"`
	OrderNumber      string           `json:"order_number"`
	CustomerName     string           `json:"customer_name,omitempty"`
	TotalAmount      *decimal.Decimal `json:"total_amount,omitempty"`
	NewStatus        string           `json:"new_status,omitempty"`
}

// OrderFrame 下发到订单频道的帧
type OrderFrame struct {
	Type    string       `json:"type"`
	Message OrderMessage `json:"message"`
}

// NotificationFrame 下发到用户通知频道的帧
type NotificationFrame struct {
	Type             string    `json:"type"`
	NotificationID   uint      `json:"notification_id"`
	Message          string    `json:"message"`
	NotificationType string    `json:"notification_type"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// Publisher 按分组发布帧。分组内无在线会话时静默丢弃，不排队也不重放。
type Publisher interface {
	Publish(ctx context.Context, group string, frame any) error
}
