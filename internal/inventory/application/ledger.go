// Package application 库存账本与手工流水服务
package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/retailops/internal/inventory/domain"
	"github.com/wyfcoding/retailops/pkg/db"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
)

// Entry 一次库存变动请求
type Entry struct {
	ProductID uint
	// in/out 为变动数量，adjust 为盘点后的绝对库存
	Quantity int
	Reason   domain.Reason
	Notes    string
	ActorID  *uint
}

// Ledger 库存账本，商品库存的唯一修改入口。
// 每次变动在同一事务内完成：行锁读取库存、计算、回写、追加一条流水。
// ctx 已携带事务时加入该事务，否则自行开启。
type Ledger struct {
	repo    domain.InventoryRepository
	policy  domain.OversellPolicy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewLedger(repo domain.InventoryRepository, policy domain.OversellPolicy, m *metrics.Metrics) *Ledger {
	return &Ledger{
		repo:    repo,
		policy:  policy,
		metrics: m,
		logger:  logger.Module("inventory"),
	}
}

// LockProduct 在当前事务内锁定商品行，供调用方读取价格等信息后再记账
func (l *Ledger) LockProduct(ctx context.Context, productID uint) (*domain.Product, error) {
	return l.repo.LockProduct(ctx, productID)
}

// RecordInbound 入库：stock += qty
func (l *Ledger) RecordInbound(ctx context.Context, e Entry) (*domain.Movement, error) {
	return l.record(ctx, domain.MovementIn, e)
}

// RecordOutbound 出库：stock -= qty，超卖按策略截断或拒绝
// 加入外层事务时调用方应在提交后自行记录指标，见 RecordCommitted
func (l *Ledger) RecordOutbound(ctx context.Context, e Entry) (*domain.Movement, error) {
	return l.record(ctx, domain.MovementOut, e)
}

// RecordAdjustment 盘点：stock = qty
func (l *Ledger) RecordAdjustment(ctx context.Context, e Entry) (*domain.Movement, error) {
	return l.record(ctx, domain.MovementAdjust, e)
}

func (l *Ledger) record(ctx context.Context, t domain.MovementType, e Entry) (*domain.Movement, error) {
	if e.Reason != "" && !e.Reason.AppliesTo(t) {
		return nil, domain.ErrReasonMismatch.WithMessage("reason %q cannot be used for %q movements", e.Reason, t)
	}

	// 加入外层事务时由外层决定提交与否，指标只在自有事务提交后记录
	joined := db.InTx(ctx)

	var mv *domain.Movement
	err := l.repo.WithTx(ctx, func(txCtx context.Context) error {
		p, err := l.repo.LockProduct(txCtx, e.ProductID)
		if err != nil {
			return err
		}

		after, err := domain.NextStock(t, p.Stock, e.Quantity, l.policy)
		if err != nil {
			return err
		}

		m := &domain.Movement{
			ProductID:   p.ID,
			Type:        t,
			Quantity:    e.Quantity,
			Reason:      e.Reason,
			Notes:       e.Notes,
			StockBefore: p.Stock,
			StockAfter:  after,
			ActorID:     e.ActorID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
		}
		if m.Reason == "" {
			m.Reason = domain.ReasonOther
		}
		if err := m.Verify(); err != nil {
			return err
		}

		if err := l.repo.UpdateStock(txCtx, p.ID, after); err != nil {
			return err
		}
		if err := l.repo.AppendMovement(txCtx, m); err != nil {
			return err
		}
		mv = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if t == domain.MovementOut && mv.Quantity > mv.StockBefore {
		l.logger.WarnContext(ctx, "outbound exceeded stock, clamped to zero",
			"product_id", mv.ProductID, "requested", mv.Quantity, "available", mv.StockBefore)
	}
	if !joined {
		l.metrics.RecordMovement(string(t), string(mv.Reason))
	}
	return mv, nil
}

// RecordCommitted 外层事务提交后补记指标
func (l *Ledger) RecordCommitted(movements ...*domain.Movement) {
	for _, mv := range movements {
		l.metrics.RecordMovement(string(mv.Type), string(mv.Reason))
	}
}
