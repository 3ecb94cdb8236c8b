package domain

import (
	"fmt"
	"time"

	"github.com/wyfcoding/retailops/pkg/errorx"
)

// MovementType 流水方向
type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

// Reason 流水原因，闭合集合
type Reason string

const (
	ReasonPurchase       Reason = "purchase"
	ReasonCustomerReturn Reason = "customer_return"
	ReasonProduction     Reason = "production"
	ReasonSale           Reason = "sale"
	ReasonShrinkage      Reason = "shrinkage"
	ReasonGift           Reason = "gift"
	ReasonSupplierReturn Reason = "supplier_return"
	ReasonPhysicalCount  Reason = "physical_count"
	ReasonCorrection     Reason = "correction"
	ReasonCancellation   Reason = "cancellation"
	ReasonOther          Reason = "other"
)

// OversellPolicy 出库数量超过现有库存时的处理
type OversellPolicy string

const (
	// OversellClamp 库存截断为 0，流水保留请求数量
	OversellClamp OversellPolicy = "clamp"
	// OversellReject 拒绝出库
	OversellReject OversellPolicy = "reject"
)

var (
	ErrInvalidMovementType = errorx.Validation("invalid_movement_type", "movement type must be in, out or adjust")
	ErrInvalidReason       = errorx.Validation("invalid_reason", "unknown movement reason")
	ErrReasonMismatch      = errorx.Validation("reason_mismatch", "reason does not apply to this movement type")
	ErrInvalidQuantity     = errorx.Validation("invalid_quantity", "quantity must be positive")
	ErrInsufficientStock   = errorx.Validation("insufficient_stock", "not enough stock")
	ErrBrokenChain         = errorx.Validation("movement_chain_broken", "stock_after does not follow from stock_before")
)

func ParseMovementType(s string) (MovementType, error) {
	switch t := MovementType(s); t {
	case MovementIn, MovementOut, MovementAdjust:
		return t, nil
	default:
		return "", ErrInvalidMovementType.WithMessage("unknown movement type %q", s)
	}
}

func ParseReason(s string) (Reason, error) {
	switch r := Reason(s); r {
	case ReasonPurchase, ReasonCustomerReturn, ReasonProduction, ReasonSale, ReasonShrinkage,
		ReasonGift, ReasonSupplierReturn, ReasonPhysicalCount, ReasonCorrection, ReasonCancellation, ReasonOther:
		return r, nil
	default:
		return "", ErrInvalidReason.WithMessage("unknown movement reason %q", s)
	}
}

func ParseOversellPolicy(s string) (OversellPolicy, error) {
	switch p := OversellPolicy(s); p {
	case OversellClamp, OversellReject:
		return p, nil
	case "":
		return OversellClamp, nil
	default:
		return "", fmt.Errorf("unknown oversell policy %q", s)
	}
}

// AppliesTo 校验原因与方向的搭配。correction、other 适用于任意方向。
func (r Reason) AppliesTo(t MovementType) bool {
	switch r {
	case ReasonPurchase, ReasonCustomerReturn, ReasonProduction, ReasonCancellation:
		return t == MovementIn
	case ReasonSale, ReasonShrinkage, ReasonGift, ReasonSupplierReturn:
		return t == MovementOut
	case ReasonPhysicalCount:
		return t == MovementAdjust
	case ReasonCorrection, ReasonOther:
		return true
	default:
		return false
	}
}

// Movement 库存流水，只追加不修改
type Movement struct {
	ID          uint
	ProductID   uint
	Type        MovementType
	Quantity    int
	Reason      Reason
	Notes       string
	StockBefore int
	StockAfter  int
	// 操作人，系统触发时为空
	ActorID   *uint
	CreatedAt time.Time

	// 只读展示字段
	ProductName string
	ProductSKU  string
}

// NextStock 按方向计算变动后的库存。
// in: before+qty；out: before-qty，clamp 策略下截断为 0；adjust: 直接设为 qty。
func NextStock(t MovementType, before, qty int, policy OversellPolicy) (int, error) {
	switch t {
	case MovementIn:
		if qty <= 0 {
			return 0, ErrInvalidQuantity
		}
		return before + qty, nil
	case MovementOut:
		if qty <= 0 {
			return 0, ErrInvalidQuantity
		}
		if qty > before {
			if policy == OversellReject {
				return 0, ErrInsufficientStock.WithMessage("requested %d, available %d", qty, before)
			}
			return 0, nil
		}
		return before - qty, nil
	case MovementAdjust:
		if qty < 0 {
			return 0, ErrInvalidQuantity.WithMessage("adjustment target must be zero or positive")
		}
		return qty, nil
	default:
		return 0, ErrInvalidMovementType
	}
}

// Verify 校验 stock_after 与 stock_before、quantity 之间的链式关系
func (m *Movement) Verify() error {
	var want int
	switch m.Type {
	case MovementIn:
		want = m.StockBefore + m.Quantity
	case MovementOut:
		want = max(0, m.StockBefore-m.Quantity)
	case MovementAdjust:
		want = m.Quantity
	default:
		return ErrInvalidMovementType
	}
	if m.StockAfter != want || m.StockAfter < 0 {
		return ErrBrokenChain.WithMessage("movement %s qty=%d: before=%d after=%d, want %d",
			m.Type, m.Quantity, m.StockBefore, m.StockAfter, want)
	}
	return nil
}
