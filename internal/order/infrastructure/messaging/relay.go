package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/retailops/pkg/db"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
	"github.com/wyfcoding/retailops/pkg/mq"
)

// Producer 消息发送端，生产环境为 *mq.KafkaProducer
type Producer interface {
	Publish(ctx context.Context, msgs ...mq.Message) error
}

// RelayConfig 投递参数
type RelayConfig struct {
	Topic        string
	BatchSize    int
	PollInterval time.Duration
	Retention    time.Duration
	// MaxAttempts 连续失败达到该次数后标记为 dead
	MaxAttempts int
}

// Relay 轮询 outbox 表，将 pending 事件投递到 Kafka。
// 投递失败的记录保持 pending 并累加重试次数，下一轮继续；
// 达到 MaxAttempts 后转为 dead，避免反复失败的记录占满批次。
type Relay struct {
	db       *db.DB
	producer Producer
	cfg      RelayConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewRelay(d *db.DB, producer Producer, cfg RelayConfig, m *metrics.Metrics) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Relay{
		db:       d,
		producer: producer,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.Module("order_outbox"),
	}
}

// Run 阻塞直到 ctx 取消
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	var lastCleanup time.Time
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "outbox batch failed", "error", err)
			}
			if r.cfg.Retention > 0 && time.Since(lastCleanup) > time.Hour {
				lastCleanup = time.Now()
				if _, err := r.Cleanup(ctx, time.Now().Add(-r.cfg.Retention)); err != nil {
					r.logger.WarnContext(ctx, "outbox cleanup failed", "error", err)
				}
			}
		}
	}
}

// ProcessBatch 按创建顺序投递一批 pending 事件，返回成功条数
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var messages []OutboxMessage
	err := r.db.Conn(ctx).
		Where("status = ?", StatusPending).
		Order("created_at").Order("id").
		Limit(r.cfg.BatchSize).
		Find(&messages).Error
	if err != nil {
		return 0, db.Classify(err)
	}

	sent, failed, dead := 0, 0, 0
	for i := range messages {
		msg := &messages[i]
		pubErr := r.producer.Publish(ctx, mq.Message{
			Topic: r.cfg.Topic,
			Key:   msg.AggregateKey,
			Value: []byte(msg.Payload),
			Headers: map[string]string{
				"event_type": msg.EventType,
				"event_id":   msg.ID,
			},
		})
		if pubErr != nil {
			failed++
			attempts := msg.Attempts + 1
			updates := map[string]any{
				"attempts":   attempts,
				"last_error": pubErr.Error(),
			}
			if attempts >= r.cfg.MaxAttempts {
				updates["status"] = StatusDead
				dead++
				r.logger.ErrorContext(ctx, "outbox message dead-lettered", "id", msg.ID, "event_type", msg.EventType, "attempts", attempts, "error", pubErr)
			} else {
				r.logger.WarnContext(ctx, "outbox publish failed", "id", msg.ID, "attempts", attempts, "error", pubErr)
			}
			if err := r.db.Conn(ctx).Model(msg).Updates(updates).Error; err != nil {
				return sent, db.Classify(err)
			}
			continue
		}

		now := time.Now()
		if err := r.db.Conn(ctx).Model(msg).Updates(map[string]any{
			"status":  StatusSent,
			"sent_at": &now,
		}).Error; err != nil {
			return sent, db.Classify(err)
		}
		sent++
	}

	r.metrics.RecordRelay("sent", sent)
	r.metrics.RecordRelay("failed", failed)
	r.metrics.RecordRelay("dead", dead)
	return sent, nil
}

// Cleanup 删除 before 之前已投递的记录
func (r *Relay) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.Conn(ctx).Where("status = ? AND updated_at < ?", StatusSent, before).Delete(&OutboxMessage{})
	if res.Error != nil {
		return 0, db.Classify(res.Error)
	}
	return res.RowsAffected, nil
}
