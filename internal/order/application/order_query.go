package application

import (
	"context"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/internal/order/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

// OrderQuery 订单读取。员工可见全部订单，顾客只能看到自己创建的订单。
type OrderQuery struct {
	repo domain.OrderRepository
}

func NewOrderQuery(repo domain.OrderRepository) *OrderQuery {
	return &OrderQuery{repo: repo}
}

func (q *OrderQuery) Get(ctx context.Context, id uint, actor authdomain.Principal) (*OrderDTO, error) {
	o, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// 不暴露他人订单是否存在
	if !actor.IsStaff() && !o.IsOwnedBy(actor.UserID) {
		return nil, domain.ErrOrderNotFound.WithMessage("order %d not found", id)
	}
	return toOrderDTO(o), nil
}

func (q *OrderQuery) List(ctx context.Context, in ListOrdersQuery, actor authdomain.Principal) ([]*OrderDTO, int64, error) {
	f := domain.OrderFilter{
		From:   in.From,
		To:     in.To,
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	if !actor.IsStaff() {
		uid := actor.UserID
		f.CreatedBy = &uid
	}
	if in.Status != "" {
		s, err := domain.ParseStatus(in.Status)
		if err != nil {
			return nil, 0, err
		}
		f.Status = s
	}
	if in.PaymentMethod != "" {
		pm, err := domain.ParsePaymentMethod(in.PaymentMethod)
		if err != nil {
			return nil, 0, err
		}
		f.PaymentMethod = pm
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, errorx.Validation("invalid_range", "from must be before to")
	}

	orders, total, err := q.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out, total, nil
}
