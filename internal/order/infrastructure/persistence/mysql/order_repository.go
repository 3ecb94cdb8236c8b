// Package mysql 订单仓储的 GORM 实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/retailops/internal/order/domain"
	"github.com/wyfcoding/retailops/pkg/db"
)

type orderRepository struct {
	db *db.DB
}

func NewOrderRepository(d *db.DB) domain.OrderRepository {
	return &orderRepository{db: d}
}

func (r *orderRepository) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

// NextDailySequence upsert 计数行后加锁读回。
// 并发下单在计数行上排队，事务回滚时序号一并回滚。
func (r *orderRepository) NextDailySequence(ctx context.Context, day string) (int64, error) {
	conn := r.db.Conn(ctx)
	seq := OrderSequenceModel{Day: day, LastValue: 1}
	err := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{"last_value": gorm.Expr("last_value + 1")}),
	}).Create(&seq).Error
	if err != nil {
		return 0, db.Classify(err)
	}

	var cur OrderSequenceModel
	if err := conn.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("day = ?", day).First(&cur).Error; err != nil {
		return 0, db.Classify(err)
	}
	return cur.LastValue, nil
}

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	conn := r.db.Conn(ctx)
	m := toOrderModel(o)
	if err := conn.Omit(clause.Associations).Create(m).Error; err != nil {
		return db.Classify(err)
	}

	if len(o.Items) > 0 {
		items := make([]*OrderItemModel, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, toItemModel(m.ID, it))
		}
		if err := conn.Omit(clause.Associations).Create(&items).Error; err != nil {
			return db.Classify(err)
		}
		for i, it := range o.Items {
			it.ID, it.OrderID = items[i].ID, m.ID
		}
	}

	o.ID, o.CreatedAt, o.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id uint) (*domain.Order, error) {
	return r.find(r.db.Conn(ctx), id)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Order, error) {
	return r.find(r.db.Conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *orderRepository) find(q *gorm.DB, id uint) (*domain.Order, error) {
	var m OrderModel
	err := q.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound.WithMessage("order %d not found", id)
		}
		return nil, db.Classify(err)
	}
	return toOrder(&m), nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status domain.Status) error {
	res := r.db.Conn(ctx).Model(&OrderModel{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return db.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound.WithMessage("order %d not found", id)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, int64, error) {
	q := r.db.Conn(ctx).Model(&OrderModel{})
	if f.CreatedBy != nil {
		q = q.Where("created_by = ?", *f.CreatedBy)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", string(f.PaymentMethod))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	q = q.Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		Order("created_at desc").Order("id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var models []OrderModel
	if err := q.Find(&models).Error; err != nil {
		return nil, 0, db.Classify(err)
	}
	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toOrder(&models[i]))
	}
	return out, total, nil
}
