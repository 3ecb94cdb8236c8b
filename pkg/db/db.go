// Package db 提供 GORM 初始化、连接池、事务助手与驱动错误归类
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/wyfcoding/retailops/pkg/contextx"
	pkgLogger "github.com/wyfcoding/retailops/pkg/logger"
)

// Config 数据库配置
type Config struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int
	LogEnabled         bool
	SlowQueryThreshold int
	// 行锁等待上限（毫秒），0 表示使用数据库默认值
	LockTimeoutMs int
	// 是否挂载 OpenTelemetry 插件
	Tracing bool
}

// DB 数据库实例包装
type DB struct {
	*gorm.DB
	config Config
}

// Init 初始化数据库连接
func Init(cfg Config) (*DB, error) {
	var dialector gorm.Dialector

	// 根据驱动类型选择方言
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file::memory:"
		}
		dialector = sqlite.Open(dsn)
		// SQLite 单写者，多连接只会带来 busy 错误
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormLogger := NewGormLogger(cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond)

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Tracing {
		if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pkgLogger.Info(context.Background(), "Database connected successfully", "driver", cfg.Driver)

	return &DB{DB: gdb, config: cfg}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver 返回驱动名
func (d *DB) Driver() string { return d.config.Driver }

// AutoMigrate 建表
func (d *DB) AutoMigrate(models ...any) error {
	return d.DB.AutoMigrate(models...)
}

// Conn 返回 context 中的事务句柄，不在事务中时返回绑定 ctx 的基础连接
func (d *DB) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return d.DB.WithContext(ctx)
}

// InTx 判断 ctx 是否已携带事务
func InTx(ctx context.Context) bool {
	tx, ok := contextx.GetTx(ctx).(*gorm.DB)
	return ok && tx != nil
}

// WithTx 在事务中执行 fn。
// ctx 已携带事务时直接加入，由最外层负责提交或回滚；返回的错误经过 Classify 归类。
func (d *DB) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.applyLockTimeout(tx); err != nil {
			return err
		}
		return fn(contextx.WithTx(ctx, tx))
	})
	return Classify(err)
}

// applyLockTimeout 限制当前事务的行锁等待时间
func (d *DB) applyLockTimeout(tx *gorm.DB) error {
	ms := d.config.LockTimeoutMs
	if ms <= 0 {
		return nil
	}
	switch d.config.Driver {
	case "mysql":
		// innodb_lock_wait_timeout 以秒为单位，最小 1
		secs := (ms + 999) / 1000
		return tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", secs).Error
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error
	default:
		return nil
	}
}
