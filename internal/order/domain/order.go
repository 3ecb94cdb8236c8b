// Package domain 订单领域模型：订单头、明细、状态机与订单号
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/retailops/pkg/errorx"
)

var (
	ErrOrderNotFound        = errorx.NotFound("order_not_found", "order not found")
	ErrEmptyOrder           = errorx.Validation("empty_order", "order must contain at least one item")
	ErrCustomerNameRequired = errorx.Validation("customer_name_required", "customer name is required")
	ErrInvalidQuantity      = errorx.Validation("invalid_quantity", "item quantity must be positive")
	ErrInvalidUnitPrice     = errorx.Validation("invalid_unit_price", "unit price must be non-negative with at most 2 decimal places")
	ErrInvalidStatus        = errorx.Validation("invalid_status", "unknown order status")
	ErrInvalidTransition    = errorx.Validation("invalid_transition", "order status transition not allowed")
	ErrInvalidPayment       = errorx.Validation("invalid_payment_method", "unknown payment method")
)

// Status 订单状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus.WithMessage("unknown order status %q", s)
}

// IsTerminal completed 与 cancelled 为终态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo 仅允许 pending → completed | cancelled
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentTransfer  PaymentMethod = "transfer"
	PaymentNequi     PaymentMethod = "nequi"
	PaymentDaviplata PaymentMethod = "daviplata"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); pm {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentNequi, PaymentDaviplata:
		return pm, nil
	}
	return "", ErrInvalidPayment.WithMessage("unknown payment method %q", s)
}

// Customer 下单客户信息快照
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// MoneyScale 金额列为 decimal(12,2)
const MoneyScale = 2

// ValidUnitPrice 单价非负且小数位不超过 MoneyScale，超出精度的值落库会被截断，合计与明细对不上
func ValidUnitPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.Equal(p.Round(MoneyScale))
}

// OrderItem 订单明细，单价为下单时快照
type OrderItem struct {
	ID          uint
	OrderID     uint
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// NewOrderItem 写入时一次性计算行合计
func NewOrderItem(productID uint, productName string, qty int, unitPrice decimal.Decimal) (*OrderItem, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity.WithMessage("quantity for product %d must be positive, got %d", productID, qty)
	}
	if !ValidUnitPrice(unitPrice) {
		return nil, ErrInvalidUnitPrice.WithMessage("unit price %s for product %d must be non-negative with at most %d decimal places", unitPrice, productID, MoneyScale)
	}
	return &OrderItem{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(qty))),
	}, nil
}

// Order 订单聚合根
type Order struct {
	ID            uint
	Number        string
	Customer      Customer
	PaymentMethod PaymentMethod
	Status        Status
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Notes         string
	// CreatedBy 创建人，用户删除后为空
	CreatedBy *uint
	Items     []*OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) AddItem(it *OrderItem) {
	o.Items = append(o.Items, it)
	o.Subtotal = o.Subtotal.Add(it.TotalPrice)
}

// ApplyTotals total = subtotal - discount + tax，税额与折扣按 MoneyScale 取整
func (o *Order) ApplyTotals(tax, discount decimal.Decimal) {
	o.Tax = tax.Round(MoneyScale)
	o.Discount = discount.Round(MoneyScale)
	o.Total = o.Subtotal.Sub(o.Discount).Add(o.Tax)
}

// RecalculateTotals 从明细重新汇总，客户端传入的金额一律不采信
func (o *Order) RecalculateTotals() {
	sub := decimal.Zero
	for _, it := range o.Items {
		sub = sub.Add(it.TotalPrice)
	}
	o.Subtotal = sub
	o.ApplyTotals(o.Tax, o.Discount)
}

// TransitionTo 校验并切换状态
func (o *Order) TransitionTo(next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidTransition.WithMessage("order %s cannot move from %s to %s", o.Number, o.Status, next)
	}
	o.Status = next
	return nil
}

// IsOwnedBy 订单是否由该用户创建
func (o *Order) IsOwnedBy(userID uint) bool {
	return o.CreatedBy != nil && *o.CreatedBy == userID
}

// FormatNumber 订单号 YYYYMMDD-NNNN，序号按自然日递增
func FormatNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d", day.Format("20060102"), seq)
}

// DayKey 订单号所属的自然日
func DayKey(t time.Time) string {
	return t.Format("20060102")
}
