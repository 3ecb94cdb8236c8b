// Package application 进程内分组广播
package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wyfcoding/retailops/internal/realtime/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
)

// Session 一个在线连接在 Hub 中的代表
type Session struct {
	ID   string
	send chan []byte
	kick chan struct{}
	once sync.Once
}

// Send 待写出的帧
func (s *Session) Send() <-chan []byte { return s.send }

// Kicked 发送缓冲写满后关闭，连接方应断开并 Leave
func (s *Session) Kicked() <-chan struct{} { return s.kick }

func (s *Session) evict() {
	s.once.Do(func() { close(s.kick) })
}

// Hub 分组注册表，实现 domain.Publisher。
// 发布不会阻塞：缓冲已满的会话被踢出，不影响同组其他会话。
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Session]struct{}
	buffer int

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHub(buffer int, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		groups:  make(map[string]map[*Session]struct{}),
		buffer:  buffer,
		metrics: m,
		logger:  logger.Module("realtime"),
	}
}

func (h *Hub) NewSession() *Session {
	return &Session{
		ID:   uuid.NewString(),
		send: make(chan []byte, h.buffer),
		kick: make(chan struct{}),
	}
}

func (h *Hub) Join(group string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Session]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
}

func (h *Hub) Leave(group string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Publish 编码一次后投递给组内所有会话；空组直接返回
func (h *Hub) Publish(_ context.Context, group string, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	h.Broadcast(group, data)
	return nil
}

// Broadcast 投递已编码的帧，返回成功入队的会话数
func (h *Hub) Broadcast(group string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.groups[group] {
		select {
		case s.send <- data:
			delivered++
		default:
			h.logger.Warn("session send buffer full, evicting", "session", s.ID, "group", group)
			s.evict()
		}
	}
	return delivered
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

var _ domain.Publisher = (*Hub)(nil)
