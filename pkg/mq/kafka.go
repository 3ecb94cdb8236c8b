// Package mq 提供 Kafka 生产者封装
package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/retailops/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int
	// 写超时（秒）
	WriteTimeout int
}

// Message 待发送消息
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer *kafka.Writer
	config KafkaConfig
}

// NewProducer 创建 Kafka 生产者。topic 由每条消息指定。
func NewProducer(cfg KafkaConfig) *KafkaProducer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll, // 等待所有副本确认
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
		WriteTimeout:           time.Duration(cfg.WriteTimeout) * time.Second,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer, config: cfg}
}

// Publish 同步发送消息，同一 key 经 Hash 均衡器落在同一分区以保持顺序
func (kp *KafkaProducer) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	kafkaMessages := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{
			Topic: m.Topic,
			Key:   []byte(m.Key),
			Value: m.Value,
		}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		kafkaMessages = append(kafkaMessages, km)
	}

	if err := kp.writer.WriteMessages(ctx, kafkaMessages...); err != nil {
		logger.Error(ctx, "Failed to send Kafka messages", "count", len(kafkaMessages), "error", err)
		return fmt.Errorf("kafka write: %w", err)
	}

	logger.Debug(ctx, "Kafka messages sent", "count", len(kafkaMessages))
	return nil
}

// Close 关闭生产者，刷出缓冲中的消息
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}
