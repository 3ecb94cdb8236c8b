package mysql

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/retailops/internal/inventory/domain"
)

// ProductModel 商品表映射
type ProductModel struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
	Name       string          `gorm:"column:name;type:varchar(255);not null"`
	SKU        string          `gorm:"column:sku;type:varchar(64);index"`
	Price      decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null"`
	Cost       decimal.Decimal `gorm:"column:cost;type:decimal(12,2);not null;default:0"`
	Stock      int             `gorm:"column:stock;not null;default:0"`
	CategoryID *uint           `gorm:"column:category_id;index"`
}

func (ProductModel) TableName() string { return "products" }

// MovementModel 库存流水表映射
type MovementModel struct {
	ID           uint         `gorm:"primaryKey;autoIncrement"`
	CreatedAt    time.Time    `gorm:"column:created_at;index"`
	ProductID    uint         `gorm:"column:product_id;not null;index"`
	Product      ProductModel `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	MovementType string       `gorm:"column:movement_type;type:varchar(10);not null;index"`
	Quantity     int          `gorm:"column:quantity;not null"`
	Reason       string       `gorm:"column:reason;type:varchar(30);not null;index"`
	Notes        string       `gorm:"column:notes;type:text"`
	StockBefore  int          `gorm:"column:stock_before;not null"`
	StockAfter   int          `gorm:"column:stock_after;not null"`
	ActorID      *uint        `gorm:"column:actor_id;index"`
}

func (MovementModel) TableName() string { return "inventory_movements" }

func toProductModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:         p.ID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Name:       p.Name,
		SKU:        p.SKU,
		Price:      p.Price,
		Cost:       p.Cost,
		Stock:      p.Stock,
		CategoryID: p.CategoryID,
	}
}

func toProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Name:       m.Name,
		SKU:        m.SKU,
		Price:      m.Price,
		Cost:       m.Cost,
		Stock:      m.Stock,
		CategoryID: m.CategoryID,
	}
}

func toMovementModel(mv *domain.Movement) *MovementModel {
	return &MovementModel{
		ID:           mv.ID,
		CreatedAt:    mv.CreatedAt,
		ProductID:    mv.ProductID,
		MovementType: string(mv.Type),
		Quantity:     mv.Quantity,
		Reason:       string(mv.Reason),
		Notes:        mv.Notes,
		StockBefore:  mv.StockBefore,
		StockAfter:   mv.StockAfter,
		ActorID:      mv.ActorID,
	}
}

func toMovement(m *MovementModel) *domain.Movement {
	return &domain.Movement{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		ProductID:   m.ProductID,
		Type:        domain.MovementType(m.MovementType),
		Quantity:    m.Quantity,
		Reason:      domain.Reason(m.Reason),
		Notes:       m.Notes,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		ActorID:     m.ActorID,
		ProductName: m.Product.Name,
		ProductSKU:  m.Product.SKU,
	}
}
