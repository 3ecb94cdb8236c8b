// Package application 订单事务编排与查询
package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	invapp "github.com/wyfcoding/retailops/internal/inventory/application"
	invdomain "github.com/wyfcoding/retailops/internal/inventory/domain"
	"github.com/wyfcoding/retailops/internal/order/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
)

// ManagerConfig 订单编排参数
type ManagerConfig struct {
	// Location 订单号按该时区的自然日编号
	Location *time.Location
	// RestockOnCancel 取消订单时按明细回补库存
	RestockOnCancel bool
}

// OrderManager 订单事务编排器。
// 下单与状态变更各在一个数据库事务内完成，事件只在提交成功后分发。
type OrderManager struct {
	repo       domain.OrderRepository
	ledger     *invapp.Ledger
	outbox     domain.EventOutbox
	dispatcher domain.EventDispatcher
	pricer     domain.Pricer
	metrics    *metrics.Metrics
	cfg        ManagerConfig
	now        func() time.Time
	logger     *slog.Logger
}

// Option 可选依赖
type Option func(*OrderManager)

func WithPricer(p domain.Pricer) Option {
	return func(m *OrderManager) { m.pricer = p }
}

// WithOutbox 事务内写入 outbox 事件，供 Relay 投递到 Kafka
func WithOutbox(o domain.EventOutbox) Option {
	return func(m *OrderManager) { m.outbox = o }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *OrderManager) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *OrderManager) { m.now = now }
}

func NewOrderManager(repo domain.OrderRepository, ledger *invapp.Ledger, dispatcher domain.EventDispatcher, cfg ManagerConfig, opts ...Option) *OrderManager {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if dispatcher == nil {
		dispatcher = domain.NoopDispatcher{}
	}
	m := &OrderManager{
		repo:       repo,
		ledger:     ledger,
		dispatcher: dispatcher,
		pricer:     domain.ZeroPricer{},
		cfg:        cfg,
		now:        time.Now,
		logger:     logger.Module("order_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOrder 下单：预留订单号，逐项锁定商品、快照单价、出库记账，汇总金额后落库。
// 任一步失败整体回滚，不留下订单、库存或流水的部分修改。
func (m *OrderManager) CreateOrder(ctx context.Context, cmd CreateOrderCommand, actor authdomain.Principal) (*OrderDTO, error) {
	defer logger.LogDuration(ctx, "CreateOrder finished", "items", len(cmd.Items))()

	payment, status, err := m.validateCreate(cmd, actor)
	if err != nil {
		return nil, err
	}

	var (
		order     *domain.Order
		movements []*invdomain.Movement
	)
	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		movements = movements[:0]

		day := m.now().In(m.cfg.Location)
		seq, err := m.repo.NextDailySequence(txCtx, domain.DayKey(day))
		if err != nil {
			return err
		}

		o := &domain.Order{
			Number: domain.FormatNumber(day, seq),
			Customer: domain.Customer{
				Name:    strings.TrimSpace(cmd.CustomerName),
				Email:   cmd.CustomerEmail,
				Phone:   cmd.CustomerPhone,
				Address: cmd.CustomerAddress,
			},
			PaymentMethod: payment,
			Status:        status,
			Notes:         strings.TrimSpace(cmd.Notes),
			CreatedBy:     actor.ActorID(),
		}

		// 按请求顺序逐项处理
		for _, req := range cmd.Items {
			p, err := m.ledger.LockProduct(txCtx, req.ProductID)
			if err != nil {
				return err
			}
			price := p.Price
			if req.UnitPrice != nil {
				price = *req.UnitPrice
			}
			item, err := domain.NewOrderItem(p.ID, p.Name, req.Quantity, price)
			if err != nil {
				return err
			}

			mv, err := m.ledger.RecordOutbound(txCtx, invapp.Entry{
				ProductID: p.ID,
				Quantity:  req.Quantity,
				Reason:    invdomain.ReasonSale,
				Notes:     "Order " + o.Number,
				ActorID:   o.CreatedBy,
			})
			if err != nil {
				return err
			}
			movements = append(movements, mv)
			o.AddItem(item)
		}

		tax, discount, err := m.pricer.Price(txCtx, o)
		if err != nil {
			return err
		}
		o.ApplyTotals(tax, discount)

		if err := m.repo.Create(txCtx, o); err != nil {
			return err
		}
		if m.outbox != nil {
			if err := m.outbox.Append(txCtx, domain.OrderCreatedEventType, o.Number, createdEvent(o)); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		m.logger.WarnContext(ctx, "create order failed", "customer", cmd.CustomerName, "error", err)
		return nil, err
	}

	total, _ := order.Total.Float64()
	m.metrics.RecordOrder(string(order.Status), total)
	m.ledger.RecordCommitted(movements...)
	m.dispatcher.OrderCreated(ctx, createdEvent(order))

	m.logger.InfoContext(ctx, "order created",
		"order_id", order.ID, "number", order.Number, "total", order.Total.String(), "actor_id", actor.UserID)
	return toOrderDTO(order), nil
}

func (m *OrderManager) validateCreate(cmd CreateOrderCommand, actor authdomain.Principal) (domain.PaymentMethod, domain.Status, error) {
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return "", "", domain.ErrCustomerNameRequired
	}
	if len(cmd.Items) == 0 {
		return "", "", domain.ErrEmptyOrder
	}
	for _, it := range cmd.Items {
		if it.Quantity <= 0 {
			return "", "", domain.ErrInvalidQuantity.WithMessage("quantity for product %d must be positive, got %d", it.ProductID, it.Quantity)
		}
		if it.UnitPrice != nil && !domain.ValidUnitPrice(*it.UnitPrice) {
			return "", "", domain.ErrInvalidUnitPrice.WithMessage("unit price %s for product %d must be non-negative with at most %d decimal places",
				it.UnitPrice, it.ProductID, domain.MoneyScale)
		}
	}

	payment, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return "", "", err
	}

	status := domain.StatusPending
	if cmd.Status != "" {
		if status, err = domain.ParseStatus(cmd.Status); err != nil {
			return "", "", err
		}
	}
	switch status {
	case domain.StatusCancelled:
		return "", "", domain.ErrInvalidStatus.WithMessage("orders cannot be created as cancelled")
	case domain.StatusCompleted:
		if !actor.IsStaff() {
			return "", "", errorx.PermissionDenied("only staff may create completed orders")
		}
	}
	return payment, status, nil
}

// UpdateStatus 订单状态流转，仅限可管理订单的员工。
// 取消时按配置逐项回补库存，与状态更新在同一事务内。
func (m *OrderManager) UpdateStatus(ctx context.Context, id uint, status string, actor authdomain.Principal) (*OrderDTO, error) {
	if !actor.CanManageOrders() {
		return nil, errorx.PermissionDenied("only admin or seller staff may change order status")
	}
	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		order     *domain.Order
		old       domain.Status
		movements []*invdomain.Movement
	)
	err = m.repo.WithTx(ctx, func(txCtx context.Context) error {
		movements = movements[:0]

		o, err := m.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		old = o.Status
		if err := o.TransitionTo(next); err != nil {
			return err
		}

		if next == domain.StatusCancelled && m.cfg.RestockOnCancel {
			for _, it := range o.Items {
				mv, err := m.ledger.RecordInbound(txCtx, invapp.Entry{
					ProductID: it.ProductID,
					Quantity:  it.Quantity,
					Reason:    invdomain.ReasonCancellation,
					Notes:     "Order " + o.Number + " cancelled",
					ActorID:   actor.ActorID(),
				})
				if err != nil {
					return err
				}
				movements = append(movements, mv)
			}
		}

		if err := m.repo.UpdateStatus(txCtx, o.ID, next); err != nil {
			return err
		}
		if m.outbox != nil {
			if err := m.outbox.Append(txCtx, domain.OrderStatusChangedEventType, o.Number, statusEvent(o, old)); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordTransition(string(next))
	m.ledger.RecordCommitted(movements...)
	m.dispatcher.OrderStatusChanged(ctx, statusEvent(order, old))

	m.logger.InfoContext(ctx, "order status changed",
		"order_id", order.ID, "number", order.Number, "from", old, "to", next, "actor_id", actor.UserID)
	return toOrderDTO(order), nil
}

func createdEvent(o *domain.Order) domain.OrderCreatedEvent {
	return domain.OrderCreatedEvent{
		OrderID:      o.ID,
		Number:       o.Number,
		CustomerName: o.Customer.Name,
		Total:        o.Total,
		Status:       o.Status,
		CreatedBy:    o.CreatedBy,
		OccurredOn:   time.Now(),
	}
}

func statusEvent(o *domain.Order, old domain.Status) domain.OrderStatusChangedEvent {
	return domain.OrderStatusChangedEvent{
		OrderID:    o.ID,
		Number:     o.Number,
		OldStatus:  old,
		NewStatus:  o.Status,
		CreatedBy:  o.CreatedBy,
		OccurredOn: time.Now(),
	}
}
