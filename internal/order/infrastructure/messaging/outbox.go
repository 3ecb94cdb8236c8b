// Package messaging 订单事件的 Outbox 写入与 Kafka 投递
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/retailops/pkg/db"
	"github.com/wyfcoding/retailops/pkg/logger"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	// StatusDead 超过重试上限，不再投递，需人工处理
	StatusDead = "dead"
)

// OutboxMessage 待投递事件
type OutboxMessage struct {
	ID           string     `gorm:"column:id;type:varchar(36);primaryKey"`
	EventType    string     `gorm:"column:event_type;type:varchar(100);index"`
	AggregateKey string     `gorm:"column:aggregate_key;type:varchar(64)"`
	Payload      string     `gorm:"column:payload;type:text"`
	Status       string     `gorm:"column:status;type:varchar(20);index;default:'pending'"`
	Attempts     int        `gorm:"column:attempts;not null;default:0"`
	LastError    string     `gorm:"column:last_error;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;index"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (OutboxMessage) TableName() string {
	return "order_outbox_messages"
}

// Outbox 在调用方事务内写入事件记录，实现 domain.EventOutbox
type Outbox struct {
	db     *db.DB
	logger *slog.Logger
}

func NewOutbox(d *db.DB) *Outbox {
	return &Outbox{db: d, logger: logger.Module("order_outbox")}
}

// Append 序列化事件并写入 outbox 表，key 作为 Kafka 分区键
func (o *Outbox) Append(ctx context.Context, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := OutboxMessage{
		ID:           uuid.NewString(),
		EventType:    eventType,
		AggregateKey: key,
		Payload:      string(data),
		Status:       StatusPending,
	}
	if err := o.db.Conn(ctx).Create(&msg).Error; err != nil {
		return db.Classify(err)
	}
	o.logger.DebugContext(ctx, "outbox message appended", "id", msg.ID, "event_type", eventType, "key", key)
	return nil
}
