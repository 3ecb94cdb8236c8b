package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/retailops/internal/inventory/domain"
	"github.com/wyfcoding/retailops/pkg/db"
)

type inventoryRepository struct {
	db *db.DB
}

func NewInventoryRepository(d *db.DB) domain.InventoryRepository {
	return &inventoryRepository{db: d}
}

func (r *inventoryRepository) WithTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.WithTx(ctx, fn)
}

func (r *inventoryRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	m := toProductModel(p)
	if err := r.db.Conn(ctx).Create(m).Error; err != nil {
		return db.Classify(err)
	}
	p.ID, p.CreatedAt, p.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *inventoryRepository) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	return r.findProduct(r.db.Conn(ctx), id)
}

func (r *inventoryRepository) LockProduct(ctx context.Context, id uint) (*domain.Product, error) {
	return r.findProduct(r.db.Conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *inventoryRepository) findProduct(q *gorm.DB, id uint) (*domain.Product, error) {
	var m ProductModel
	if err := q.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound.WithMessage("product %d not found", id)
		}
		return nil, db.Classify(err)
	}
	return toProduct(&m), nil
}

func (r *inventoryRepository) UpdateStock(ctx context.Context, id uint, stock int) error {
	res := r.db.Conn(ctx).Model(&ProductModel{}).Where("id = ?", id).Update("stock", stock)
	if res.Error != nil {
		return db.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound.WithMessage("product %d not found", id)
	}
	return nil
}

func (r *inventoryRepository) AppendMovement(ctx context.Context, mv *domain.Movement) error {
	m := toMovementModel(mv)
	if err := r.db.Conn(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return db.Classify(err)
	}
	mv.ID, mv.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r *inventoryRepository) ListMovements(ctx context.Context, f domain.MovementFilter) ([]*domain.Movement, int64, error) {
	q := r.db.Conn(ctx).Model(&MovementModel{})
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Type != "" {
		q = q.Where("movement_type = ?", string(f.Type))
	}
	if f.Reason != "" {
		q = q.Where("reason = ?", string(f.Reason))
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

	q = q.Preload("Product").Order("created_at desc").Order("id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var models []MovementModel
	err := q.Find(&models).Error
	if err != nil {
		return nil, 0, db.Classify(err)
	}

	out := make([]*domain.Movement, 0, len(models))
	for i := range models {
		out = append(out, toMovement(&models[i]))
	}
	return out, total, nil
}
