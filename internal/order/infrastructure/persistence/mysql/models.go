package mysql

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/retailops/internal/order/domain"

	invmysql "github.com/wyfcoding/retailops/internal/inventory/infrastructure/persistence/mysql"
)

// OrderModel 订单表映射
type OrderModel struct {
	ID              uint             `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time        `gorm:"column:created_at;index"`
	UpdatedAt       time.Time        `gorm:"column:updated_at"`
	Number          string           `gorm:"column:number;type:varchar(20);uniqueIndex;not null"`
	CustomerName    string           `gorm:"column:customer_name;type:varchar(255);not null"`
	CustomerEmail   string           `gorm:"column:customer_email;type:varchar(255)"`
	CustomerPhone   string           `gorm:"column:customer_phone;type:varchar(32)"`
	CustomerAddress string           `gorm:"column:customer_address;type:text"`
	PaymentMethod   string           `gorm:"column:payment_method;type:varchar(20);not null;index"`
	Status          string           `gorm:"column:status;type:varchar(20);not null;index"`
	Subtotal        decimal.Decimal  `gorm:"column:subtotal;type:decimal(12,2);not null"`
	Tax             decimal.Decimal  `gorm:"column:tax;type:decimal(12,2);not null;default:0"`
	Discount        decimal.Decimal  `gorm:"column:discount;type:decimal(12,2);not null;default:0"`
	TotalAmount     decimal.Decimal  `gorm:"column:total_amount;type:decimal(12,2);not null"`
	Notes           string           `gorm:"column:notes;type:text"`
	CreatedBy       *uint            `gorm:"column:created_by;index"`
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 订单明细表映射，商品被引用时不可删除
type OrderItemModel struct {
	ID          uint                  `gorm:"primaryKey;autoIncrement"`
	OrderID     uint                  `gorm:"column:order_id;not null;index"`
	ProductID   uint                  `gorm:"column:product_id;not null;index"`
	Product     invmysql.ProductModel `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	ProductName string                `gorm:"column:product_name;type:varchar(255)"`
	Quantity    int                   `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal       `gorm:"column:unit_price;type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal       `gorm:"column:total_price;type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// OrderSequenceModel 每日订单号计数行
type OrderSequenceModel struct {
	Day       string `gorm:"column:day;type:varchar(8);primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null"`
}

func (OrderSequenceModel) TableName() string { return "order_daily_sequences" }

// Models 订单上下文需要迁移的全部表
func Models() []any {
	return []any{&OrderModel{}, &OrderItemModel{}, &OrderSequenceModel{}}
}

func toOrderModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		ID:              o.ID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Number:          o.Number,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		PaymentMethod:   string(o.PaymentMethod),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		Discount:        o.Discount,
		TotalAmount:     o.Total,
		Notes:           o.Notes,
		CreatedBy:       o.CreatedBy,
	}
}

func toItemModel(orderID uint, it *domain.OrderItem) *OrderItemModel {
	return &OrderItemModel{
		ID:          it.ID,
		OrderID:     orderID,
		ProductID:   it.ProductID,
		ProductName: it.ProductName,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		TotalPrice:  it.TotalPrice,
	}
}

func toOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:     m.ID,
		Number: m.Number,
		Customer: domain.Customer{
			Name:    m.CustomerName,
			Email:   m.CustomerEmail,
			Phone:   m.CustomerPhone,
			Address: m.CustomerAddress,
		},
		PaymentMethod: domain.PaymentMethod(m.PaymentMethod),
		Status:        domain.Status(m.Status),
		Subtotal:      m.Subtotal,
		Tax:           m.Tax,
		Discount:      m.Discount,
		Total:         m.TotalAmount,
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Items:         make([]*domain.OrderItem, 0, len(m.Items)),
	}
	for i := range m.Items {
		it := &m.Items[i]
		o.Items = append(o.Items, &domain.OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	return o
}
