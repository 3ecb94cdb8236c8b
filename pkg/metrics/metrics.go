// Package metrics 提供 Prometheus 指标集合与独立的指标 HTTP 服务
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/retailops/pkg/logger"
)

// Metrics 指标集合。方法对 nil 接收者安全，未启用指标时组件可直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 订单创建计数（按初始状态）
	OrdersCreated *prometheus.CounterVec
	// 订单金额分布
	OrderValue prometheus.Histogram
	// 订单状态变更
	OrderTransitions *prometheus.CounterVec
	// 库存流水（按类型）
	StockMovements *prometheus.CounterVec
	// 站内通知（按类型）
	NotificationsCreated *prometheus.CounterVec
	// 实时推送（按分组类别与结果）
	RealtimePublishes *prometheus.CounterVec
	// 在线 WebSocket 会话
	RealtimeSessions prometheus.Gauge
	// outbox 投递结果
	OutboxRelayed *prometheus.CounterVec
}

// New 创建指标实例并注册到独立 registry
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "orders_created_total",
			Help:      "Orders committed, by initial status",
		}, []string{"status"}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "order_value",
			Help:      "Order total amount",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 8),
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "order_transitions_total",
			Help:      "Order status transitions",
		}, []string{"to"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "stock_movements_total",
			Help:      "Inventory movements recorded, by type and reason",
		}, []string{"type", "reason"}),
		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by type",
		}, []string{"type"}),
		RealtimePublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "realtime_publishes_total",
			Help:      "Frames published to the delivery channel",
		}, []string{"group", "result"}),
		RealtimeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "realtime_sessions",
			Help:      "Open WebSocket sessions",
		}),
		OutboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail",
			Subsystem: serviceName,
			Name:      "outbox_relayed_total",
			Help:      "Outbox messages relayed to the broker",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersCreated,
		m.OrderValue,
		m.OrderTransitions,
		m.StockMovements,
		m.NotificationsCreated,
		m.RealtimePublishes,
		m.RealtimeSessions,
		m.OutboxRelayed,
	)
	return m
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// GinMiddleware 记录 HTTP 请求量与耗时，route 使用路由模板避免高基数
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordOrder(status string, total float64) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(status).Inc()
	m.OrderValue.Observe(total)
}

func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RecordMovement(movementType, reason string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(movementType, reason).Inc()
}

func (m *Metrics) RecordNotifications(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NotificationsCreated.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) RecordPublish(groupKind, result string) {
	if m == nil {
		return
	}
	m.RealtimePublishes.WithLabelValues(groupKind, result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.RealtimeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.RealtimeSessions.Dec()
}

func (m *Metrics) RecordRelay(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OutboxRelayed.WithLabelValues(result).Add(float64(n))
}

// StartHTTPServer 启动 Prometheus HTTP 服务器，返回的 server 由调用方负责关闭
func (m *Metrics) StartHTTPServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "Prometheus HTTP server stopped", "error", err)
		}
	}()
	return srv
}
