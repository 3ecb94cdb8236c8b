// Package ws 实时推送的 WebSocket 入口
package ws

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/internal/realtime/application"
	"github.com/wyfcoding/retailops/internal/realtime/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
	"github.com/wyfcoding/retailops/pkg/response"
)

// Config 连接参数
type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	AllowOrigins []string
}

// Handler 认证后按身份加入分组，连接期间转发组内帧，客户端上行消息一律丢弃
type Handler struct {
	hub      *application.Hub
	auth     authdomain.Authenticator
	cfg      Config
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewHandler(hub *application.Hub, auth authdomain.Authenticator, cfg Config, m *metrics.Metrics) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	h := &Handler{
		hub:     hub,
		auth:    auth,
		cfg:     cfg,
		metrics: m,
		logger:  logger.Module("realtime_ws"),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/orders/", h.Orders)
	r.GET("/ws/notifications/", h.Notifications)
}

// Orders 员工进入 admin_orders，顾客进入自己的订单频道
func (h *Handler) Orders(c *gin.Context) {
	h.serve(c, func(p authdomain.Principal) []string {
		if p.IsStaff() {
			return []string{domain.AdminOrdersGroup}
		}
		return []string{domain.UserOrdersGroup(p.UserID)}
	})
}

func (h *Handler) Notifications(c *gin.Context) {
	h.serve(c, func(p authdomain.Principal) []string {
		return []string{domain.UserGroup(p.UserID)}
	})
}

func (h *Handler) serve(c *gin.Context, groupsFor func(authdomain.Principal) []string) {
	ctx := c.Request.Context()
	p, err := h.auth.Authenticate(ctx, c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s := h.hub.NewSession()
	groups := groupsFor(p)
	for _, g := range groups {
		h.hub.Join(g, s)
	}
	h.metrics.SessionOpened()
	h.logger.InfoContext(ctx, "websocket connected", "session", s.ID, "user_id", p.UserID, "groups", groups)
	defer func() {
		for _, g := range groups {
			h.hub.Leave(g, s)
		}
		h.metrics.SessionClosed()
		h.logger.InfoContext(ctx, "websocket disconnected", "session", s.ID, "user_id", p.UserID)
	}()

	pongWait := 2 * h.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetReadLimit(4096)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-s.Kicked():
			h.logger.WarnContext(ctx, "closing slow websocket session", "session", s.ID)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer"),
				time.Now().Add(h.cfg.WriteTimeout))
			return
		case msg := <-s.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
