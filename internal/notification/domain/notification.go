// Package domain 站内通知领域模型
package domain

import (
	"context"
	"time"
)

// Type 通知类型标签
type Type string

const (
	TypeNewOrder          Type = "new_order"
	TypeOrderStatusUpdate Type = "order_status_update"
)

// Notification 站内通知，只由订单事件产生，之后仅会翻转已读标记
type Notification struct {
	ID          uint
	RecipientID uint
	Message     string
	Type        Type
	IsRead      bool
	CreatedAt   time.Time
}

// ListFilter 通知列表条件
type ListFilter struct {
	RecipientID uint
	UnreadOnly  bool
	Limit       int
	Offset      int
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	// CreateBatch 一次写入多条，回填 ID 与创建时间
	CreateBatch(ctx context.Context, notes []*Notification) error
	// ListByRecipient 最新在前
	ListByRecipient(ctx context.Context, f ListFilter) ([]*Notification, int64, error)
	// MarkAllRead 返回本次实际翻转的条数，重复调用返回 0
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
}

// PushMessage 移动端推送
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// PushSender 外部推送通道，尽力而为
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) error
}
