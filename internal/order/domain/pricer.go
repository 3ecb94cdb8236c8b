package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Pricer 税费与折扣计算协作者
type Pricer interface {
	Price(ctx context.Context, o *Order) (tax, discount decimal.Decimal, err error)
}

// ZeroPricer 默认实现，税费与折扣均为零
type ZeroPricer struct{}

func (ZeroPricer) Price(context.Context, *Order) (decimal.Decimal, decimal.Decimal, error) {
	return decimal.Zero, decimal.Zero, nil
}
