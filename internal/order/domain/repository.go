package domain

import (
	"context"
	"time"
)

// OrderFilter 订单查询条件
type OrderFilter struct {
	CreatedBy     *uint
	Status        Status
	PaymentMethod PaymentMethod
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error

	// NextDailySequence 递增并返回指定自然日的序号，须在事务内调用，计数行锁持有至事务结束
	NextDailySequence(ctx context.Context, day string) (int64, error)
	// Create 写入订单头与全部明细
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uint) (*Order, error)
	// GetForUpdate 加行锁读取订单，须在事务内调用
	GetForUpdate(ctx context.Context, id uint) (*Order, error)
	UpdateStatus(ctx context.Context, id uint, status Status) error
	// List 按创建时间倒序
	List(ctx context.Context, f OrderFilter) ([]*Order, int64, error)
}
