package db

import (
	"context"
	"errors"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/wyfcoding/retailops/pkg/errorx"
)

// ErrNotFound 未归类到具体实体的记录缺失
var ErrNotFound = errorx.NotFound("record_not_found", "record not found")

// Classify 将驱动错误归入 errorx 分类。已是 *errorx.Error 的错误原样返回。
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errorx.As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound.WithCause(err)
	}
	if IsLockContention(err) {
		return errorx.ConcurrentModification(err)
	}
	return errorx.Persistence(err)
}

// IsLockContention 判断错误是否为行锁等待超时、死锁或序列化冲突
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "40001":
			return true
		}
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
