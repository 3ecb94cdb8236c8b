// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 追踪配置
	Tracing TracingConfig `mapstructure:"tracing"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 鉴权配置
	Auth AuthConfig `mapstructure:"auth"`
	// 实时推送通道配置
	Realtime RealtimeConfig `mapstructure:"realtime"`
	// 移动端推送配置
	Push PushConfig `mapstructure:"push"`
	// Outbox 投递配置
	Outbox OutboxConfig `mapstructure:"outbox"`
	// 库存策略
	Inventory InventoryConfig `mapstructure:"inventory"`
	// 订单策略
	Order OrderConfig `mapstructure:"order"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 允许的跨域来源，为空表示不限制
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres, sqlite
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 行锁等待上限（毫秒）
	LockTimeoutMs int `mapstructure:"lock_timeout_ms"`
	// 启动时自动建表
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用，关闭时限流与跨进程通道均退化为单机模式
	Enabled bool `mapstructure:"enabled"`
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 订单领域事件 topic
	OrderTopic string `mapstructure:"order_topic"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level"`
	// 输出格式
	Format string `mapstructure:"format"`
	// 输出目标：stdout, file, both
	Output string `mapstructure:"output"`
	// 文件路径
	FilePath string `mapstructure:"file_path"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age"`
	// 是否压缩
	Compress bool `mapstructure:"compress"`
	// 是否输出调用者信息
	WithCaller bool `mapstructure:"with_caller"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// OTel 收集器端点
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	// 采样率
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// RateLimitConfig 写接口限流
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每个周期允许的请求数
	Rate int `mapstructure:"rate"`
	// 周期（秒）
	Period int `mapstructure:"period"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// AuthConfig JWT 校验配置
type AuthConfig struct {
	// HS256 密钥
	JWTSecret string `mapstructure:"jwt_secret"`
	// 签发方，为空则不校验
	Issuer string `mapstructure:"issuer"`
}

// RealtimeConfig WebSocket 与通道层配置
type RealtimeConfig struct {
	// 每个会话的发送缓冲
	SessionBuffer int `mapstructure:"session_buffer"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 心跳间隔（秒）
	PingInterval int `mapstructure:"ping_interval"`
	// 是否通过 Redis pub/sub 跨进程广播
	RedisLayer bool `mapstructure:"redis_layer"`
	// Redis 频道前缀
	ChannelPrefix string `mapstructure:"channel_prefix"`
	// 通知分发并发上限
	DispatchWorkers int `mapstructure:"dispatch_workers"`
	// 单次分发超时（秒）
	DispatchTimeout int `mapstructure:"dispatch_timeout"`
}

// PushConfig FCM 推送配置
type PushConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	ServerKey string `mapstructure:"server_key"`
	// 请求超时（秒）
	Timeout int `mapstructure:"timeout"`
	Retries int `mapstructure:"retries"`
}

// OutboxConfig outbox 轮询投递配置
type OutboxConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 轮询间隔（毫秒）
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	BatchSize      int `mapstructure:"batch_size"`
	// 已投递消息保留时长（小时）
	RetentionHours int `mapstructure:"retention_hours"`
	// 单条消息最大投递次数，超过后标记为 dead
	MaxAttempts int `mapstructure:"max_attempts"`
}

// InventoryConfig 库存策略
type InventoryConfig struct {
	// 超卖策略：clamp（库存截断为 0）或 reject（拒绝下单）
	OversellPolicy string `mapstructure:"oversell_policy"`
}

// OrderConfig 订单策略
type OrderConfig struct {
	// 取消订单时是否回补库存
	RestockOnCancel bool `mapstructure:"restock_on_cancel"`
	// 订单号日期所用时区
	Timezone string `mapstructure:"timezone"`
}

// Location 解析订单时区，空值使用本地时区
func (c OrderConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults 从 TOML 文件加载配置，文件不存在时仅使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	// 读取配置文件（如果不存在则忽略）
	_ = v.ReadInConfig()

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// 设置环境变量前缀，使用 _ 替代 .
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Inventory.OversellPolicy {
	case "clamp", "reject":
	default:
		return fmt.Errorf("invalid inventory.oversell_policy: %q", c.Inventory.OversellPolicy)
	}
	if _, err := c.Order.Location(); err != nil {
		return fmt.Errorf("invalid order.timezone: %w", err)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Outbox.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("outbox.enabled requires kafka.enabled")
	}
	if c.Realtime.RedisLayer && !c.Redis.Enabled {
		return fmt.Errorf("realtime.redis_layer requires redis.enabled")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "retail")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.lock_timeout_ms", 5000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.order_topic", "order.events")
	v.SetDefault("kafka.write_timeout", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_endpoint", "localhost:4317")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", 20)
	v.SetDefault("rate_limit.period", 1)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("realtime.session_buffer", 64)
	v.SetDefault("realtime.write_timeout", 10)
	v.SetDefault("realtime.ping_interval", 30)
	v.SetDefault("realtime.redis_layer", false)
	v.SetDefault("realtime.channel_prefix", "retail:rt:")
	v.SetDefault("realtime.dispatch_workers", 8)
	v.SetDefault("realtime.dispatch_timeout", 10)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.endpoint", "https://fcm.googleapis.com/fcm/send")
	v.SetDefault("push.timeout", 5)
	v.SetDefault("push.retries", 2)

	v.SetDefault("outbox.enabled", false)
	v.SetDefault("outbox.poll_interval_ms", 1000)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.retention_hours", 72)
	v.SetDefault("outbox.max_attempts", 10)

	v.SetDefault("inventory.oversell_policy", "clamp")

	v.SetDefault("order.restock_on_cancel", true)
	v.SetDefault("order.timezone", "")
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
