// Package domain 库存领域模型：商品库存与流水
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/retailops/pkg/errorx"
)

var ErrProductNotFound = errorx.NotFound("product_not_found", "product not found")

// Product 商品。目录维护在外部，库存数量只经由 Ledger 修改。
type Product struct {
	ID         uint
	Name       string
	SKU        string
	Price      decimal.Decimal
	Cost       decimal.Decimal
	Stock      int
	CategoryID *uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
