// Package dbtest 为仓储测试提供隔离的内存 SQLite 库。
package dbtest

import (
	"testing"

	"github.com/wyfcoding/retailops/pkg/db"
)

// New 打开一个独立的内存库并建表，测试结束时关闭。
// 单连接使并发事务串行执行，效果等同于行锁。
func New(t testing.TB, models ...any) *db.DB {
	t.Helper()

	d, err := db.Init(db.Config{
		Driver: "sqlite",
		DSN:    "file::memory:?_pragma=foreign_keys(1)",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if len(models) > 0 {
		if err := d.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return d
}
