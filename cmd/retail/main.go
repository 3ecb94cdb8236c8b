// RetailService 主程序
// 功能：订单录入与库存台账、库存流水审计、订单通知扇出与 WebSocket 实时推送
// 架构：基于 DDD，HTTP + WebSocket 对外，Kafka outbox 对下游发布领域事件
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	authapp "github.com/wyfcoding/retailops/internal/auth/application"
	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	authhttp "github.com/wyfcoding/retailops/internal/auth/interfaces/http"
	invapp "github.com/wyfcoding/retailops/internal/inventory/application"
	invdomain "github.com/wyfcoding/retailops/internal/inventory/domain"
	invmysql "github.com/wyfcoding/retailops/internal/inventory/infrastructure/persistence/mysql"
	invhttp "github.com/wyfcoding/retailops/internal/inventory/interfaces/http"
	notifapp "github.com/wyfcoding/retailops/internal/notification/application"
	notifdomain "github.com/wyfcoding/retailops/internal/notification/domain"
	notifmysql "github.com/wyfcoding/retailops/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/retailops/internal/notification/infrastructure/push"
	notifhttp "github.com/wyfcoding/retailops/internal/notification/interfaces/http"
	orderapp "github.com/wyfcoding/retailops/internal/order/application"
	"github.com/wyfcoding/retailops/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/retailops/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/retailops/internal/order/interfaces/http"
	rtapp "github.com/wyfcoding/retailops/internal/realtime/application"
	rtdomain "github.com/wyfcoding/retailops/internal/realtime/domain"
	rtredis "github.com/wyfcoding/retailops/internal/realtime/infrastructure/redis"
	"github.com/wyfcoding/retailops/internal/realtime/interfaces/ws"
	userapp "github.com/wyfcoding/retailops/internal/user/application"
	usermysql "github.com/wyfcoding/retailops/internal/user/infrastructure/persistence/mysql"
	userhttp "github.com/wyfcoding/retailops/internal/user/interfaces/http"
	"github.com/wyfcoding/retailops/pkg/cache"
	"github.com/wyfcoding/retailops/pkg/config"
	"github.com/wyfcoding/retailops/pkg/db"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
	"github.com/wyfcoding/retailops/pkg/middleware"
	"github.com/wyfcoding/retailops/pkg/mq"
	"github.com/wyfcoding/retailops/pkg/ratelimit"
	"github.com/wyfcoding/retailops/pkg/trace"
)

func main() {
	// 1. 加载配置
	configPath := config.GetEnv("APP_CONFIG", "configs/retail/config.toml")
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
		Service:    cfg.ServiceName,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting RetailService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.Init(ctx, trace.Config{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.Version,
			Endpoint:       cfg.Tracing.CollectorEndpoint,
			SamplingRate:   cfg.Tracing.SamplingRate,
		})
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		LockTimeoutMs:      cfg.Database.LockTimeoutMs,
		Tracing:            cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		models := []any{
			&usermysql.UserModel{},
			&invmysql.ProductModel{},
			&invmysql.MovementModel{},
		}
		models = append(models, ordermysql.Models()...)
		models = append(models, &messaging.OutboxMessage{}, &notifmysql.NotificationModel{})
		if err := database.AutoMigrate(models...); err != nil {
			logger.Fatal(ctx, "Failed to migrate database", "error", err)
		}
	}

	// 5. 初始化 Redis 与限流器
	var rdb *goredis.Client
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	if cfg.Redis.Enabled {
		rdb, err = cache.New(ctx, cache.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisRateLimiter(rdb, cfg.ServiceName+":ratelimit:")
	}

	// 6. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metricsInstance.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 后台任务统一由 bgCancel 停止
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	// 7. 实时推送通道
	hub := rtapp.NewHub(cfg.Realtime.SessionBuffer, metricsInstance)
	var publisher rtdomain.Publisher = hub
	if cfg.Realtime.RedisLayer {
		layer := rtredis.NewLayer(rdb, cfg.Realtime.ChannelPrefix, hub)
		publisher = layer
		go func() {
			if err := layer.Run(bgCtx); err != nil {
				logger.Error(ctx, "Redis channel layer stopped", "error", err)
			}
		}()
	}

	// 8. 初始化仓储
	userRepo := usermysql.NewUserRepository(database)
	inventoryRepo := invmysql.NewInventoryRepository(database)
	orderRepo := ordermysql.NewOrderRepository(database)
	notificationRepo := notifmysql.NewNotificationRepository(database)

	// 9. 通知扇出
	var pushSender notifdomain.PushSender = push.NoopSender{}
	if cfg.Push.Enabled {
		pushSender = push.NewFCMSender(push.FCMConfig{
			Endpoint:  cfg.Push.Endpoint,
			ServerKey: cfg.Push.ServerKey,
			Timeout:   time.Duration(cfg.Push.Timeout) * time.Second,
			Retries:   cfg.Push.Retries,
		})
	}
	fanout := notifapp.NewFanOut(notificationRepo, userRepo, publisher, pushSender, metricsInstance)
	dispatcher := notifapp.NewDispatcher(fanout, cfg.Realtime.DispatchWorkers,
		time.Duration(cfg.Realtime.DispatchTimeout)*time.Second)

	// 10. 初始化应用服务
	policy, err := invdomain.ParseOversellPolicy(cfg.Inventory.OversellPolicy)
	if err != nil {
		logger.Fatal(ctx, "Invalid oversell policy", "error", err)
	}
	ledger := invapp.NewLedger(inventoryRepo, policy, metricsInstance)
	movementService := invapp.NewMovementService(ledger, inventoryRepo)

	loc, err := cfg.Order.Location()
	if err != nil {
		logger.Fatal(ctx, "Invalid order timezone", "error", err)
	}
	managerOpts := []orderapp.Option{orderapp.WithMetrics(metricsInstance)}
	if cfg.Outbox.Enabled {
		managerOpts = append(managerOpts, orderapp.WithOutbox(messaging.NewOutbox(database)))
	}
	orderManager := orderapp.NewOrderManager(orderRepo, ledger, dispatcher, orderapp.ManagerConfig{
		Location:        loc,
		RestockOnCancel: cfg.Order.RestockOnCancel,
	}, managerOpts...)
	orderQuery := orderapp.NewOrderQuery(orderRepo)
	notificationQuery := notifapp.NewNotificationQuery(notificationRepo)
	userService := userapp.NewUserService(userRepo)
	authenticator := authapp.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, userRepo)

	// 11. Kafka outbox 投递
	var producer *mq.KafkaProducer
	relayDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		producer = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   3,
			RetryBackoff: 100,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
	}
	if cfg.Outbox.Enabled {
		relay := messaging.NewRelay(database, producer, messaging.RelayConfig{
			Topic:        cfg.Kafka.OrderTopic,
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: time.Duration(cfg.Outbox.PollIntervalMs) * time.Millisecond,
			Retention:    time.Duration(cfg.Outbox.RetentionHours) * time.Hour,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
		}, metricsInstance)
		go func() {
			defer close(relayDone)
			relay.Run(bgCtx)
		}()
	} else {
		close(relayDone)
	}

	// 12. 创建 HTTP 服务器
	router := createRouter(cfg, metricsInstance, limiter, authenticator, routes{
		users:         userhttp.NewHandler(userService),
		inventory:     invhttp.NewHandler(movementService),
		orders:        orderhttp.NewOrderHandler(orderManager, orderQuery),
		notifications: notifhttp.NewHandler(notificationQuery),
		ws: ws.NewHandler(hub, authenticator, ws.Config{
			WriteTimeout: time.Duration(cfg.Realtime.WriteTimeout) * time.Second,
			PingInterval: time.Duration(cfg.Realtime.PingInterval) * time.Second,
			AllowOrigins: cfg.HTTP.AllowOrigins,
		}, metricsInstance),
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 13. 启动 HTTP 服务器
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 14. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down RetailService")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// 先停止接收请求，再等待已提交订单的通知分发完毕
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	dispatcher.Close()

	bgCancel()
	<-relayDone
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error(ctx, "Kafka producer close error", "error", err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Metrics server shutdown error", "error", err)
		}
	}

	logger.Info(ctx, "RetailService stopped")
}

type routes struct {
	users         *userhttp.Handler
	inventory     *invhttp.Handler
	orders        *orderhttp.OrderHandler
	notifications *notifhttp.Handler
	ws            *ws.Handler
}

// createRouter 组装中间件与路由
func createRouter(cfg *config.Config, m *metrics.Metrics, limiter ratelimit.RateLimiter, authenticator authdomain.Authenticator, h routes) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 添加中间件
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware(cfg.HTTP.AllowOrigins))
	router.Use(m.GinMiddleware())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	// WebSocket 自行完成 token 校验
	h.ws.RegisterRoutes(router)

	var writeMW []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		writeMW = append(writeMW, middleware.RateLimitMiddleware(limiter, ratelimit.Limit{
			Rate:   cfg.RateLimit.Rate,
			Period: time.Duration(cfg.RateLimit.Period) * time.Second,
			Burst:  cfg.RateLimit.Burst,
		}, authhttp.PrincipalKey))
	}

	api := router.Group("/api/v1", authhttp.RequireAuth(authenticator))
	h.users.RegisterRoutes(api)
	h.inventory.RegisterRoutes(api, writeMW...)
	h.orders.RegisterRoutes(api, writeMW...)
	h.notifications.RegisterRoutes(api)

	return router
}
