// Package redis 基于 Redis pub/sub 的跨进程频道层
package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wyfcoding/retailops/internal/realtime/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// Broadcaster 本地投递端，由 application.Hub 实现
type Broadcaster interface {
	Broadcast(group string, data []byte) int
}

// Layer 发布走 Redis PUBLISH，订阅端把收到的帧转交本地 Hub。
// 多实例部署时每个实例各自运行 Run。
type Layer struct {
	rdb    *goredis.Client
	prefix string
	local  Broadcaster
	logger *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

func NewLayer(rdb *goredis.Client, prefix string, local Broadcaster) *Layer {
	return &Layer{
		rdb:    rdb,
		prefix: prefix,
		local:  local,
		logger: logger.Module("realtime_redis"),
		ready:  make(chan struct{}),
	}
}

// Publish 实现 domain.Publisher
func (l *Layer) Publish(ctx context.Context, group string, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return l.rdb.Publish(ctx, l.prefix+group, data).Err()
}

// Ready 订阅建立后关闭
func (l *Layer) Ready() <-chan struct{} { return l.ready }

// Run 订阅 <prefix>* 并转发，ctx 取消时返回 nil
func (l *Layer) Run(ctx context.Context) error {
	sub := l.rdb.PSubscribe(ctx, l.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	l.readyOnce.Do(func() { close(l.ready) })
	l.logger.Info("redis channel layer subscribed", "pattern", l.prefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			group := strings.TrimPrefix(msg.Channel, l.prefix)
			n := l.local.Broadcast(group, []byte(msg.Payload))
			l.logger.Debug("frame relayed", "group", group, "delivered", n)
		}
	}
}

var _ domain.Publisher = (*Layer)(nil)
