package domain

import (
	"context"
	"time"
)

// MovementFilter 流水查询条件
type MovementFilter struct {
	ProductID *uint
	Type      MovementType
	Reason    Reason
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// InventoryRepository 库存仓储接口。LockProduct 只能在事务内调用。
type InventoryRepository interface {
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uint) (*Product, error)
	// LockProduct 读取商品并持有行锁直到事务结束
	LockProduct(ctx context.Context, id uint) (*Product, error)
	UpdateStock(ctx context.Context, id uint, stock int) error

	AppendMovement(ctx context.Context, m *Movement) error
	// ListMovements 按创建时间倒序
	ListMovements(ctx context.Context, f MovementFilter) ([]*Movement, int64, error)
}
