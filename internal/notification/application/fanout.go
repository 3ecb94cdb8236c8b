// Package application 订单事件到站内通知与实时推送的扇出
package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wyfcoding/retailops/internal/notification/domain"
	orderdomain "github.com/wyfcoding/retailops/internal/order/domain"
	rtdomain "github.com/wyfcoding/retailops/internal/realtime/domain"
	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
	"github.com/wyfcoding/retailops/pkg/metrics"
)

// FanOut 按路由规则生成通知：先落库，再发布到实时频道。
// 发布与推送失败只记日志，不影响已落库的通知。
type FanOut struct {
	repo      domain.NotificationRepository
	users     userdomain.UserRepository
	publisher rtdomain.Publisher
	push      domain.PushSender
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewFanOut(repo domain.NotificationRepository, users userdomain.UserRepository, publisher rtdomain.Publisher, push domain.PushSender, m *metrics.Metrics) *FanOut {
	return &FanOut{
		repo:      repo,
		users:     users,
		publisher: publisher,
		push:      push,
		metrics:   m,
		logger:    logger.Module("notification"),
	}
}

// OrderCreated 新订单通知每位员工一条；admin_orders 只发布一次，由频道扇出到所有在线员工
func (f *FanOut) OrderCreated(ctx context.Context, evt orderdomain.OrderCreatedEvent) error {
	staff, err := f.users.ListStaff(ctx)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("New Order #%s placed by %s.", evt.Number, evt.CustomerName)
	notes := make([]*domain.Notification, 0, len(staff))
	for _, u := range staff {
		notes = append(notes, &domain.Notification{RecipientID: u.ID, Message: msg, Type: domain.TypeNewOrder})
	}
	if err := f.repo.CreateBatch(ctx, notes); err != nil {
		return err
	}
	f.metrics.RecordNotifications(string(domain.TypeNewOrder), len(notes))

	total := evt.Total
	f.publish(ctx, rtdomain.AdminOrdersGroup, rtdomain.OrderFrame{
		Type: rtdomain.FrameOrderNotification,
		Message: rtdomain.OrderMessage{
			NotificationType: string(domain.TypeNewOrder),
			OrderID:          evt.OrderID,
			OrderNumber:      evt.Number,
			CustomerName:     evt.CustomerName,
			TotalAmount:      &total,
		},
	})
	for _, n := range notes {
		f.publish(ctx, rtdomain.UserGroup(n.RecipientID), notificationFrame(n))
	}

	f.logger.InfoContext(ctx, "new order fan-out done", "order_number", evt.Number, "recipients", len(notes))
	return nil
}

// OrderStatusChanged 仅在订单完成且有创建人时通知创建人，并尽力推送到其设备
func (f *FanOut) OrderStatusChanged(ctx context.Context, evt orderdomain.OrderStatusChangedEvent) error {
	if evt.NewStatus != orderdomain.StatusCompleted || evt.CreatedBy == nil {
		return nil
	}
	recipient := *evt.CreatedBy

	msg := fmt.Sprintf("Your Order #%s has been completed.", evt.Number)
	n := &domain.Notification{RecipientID: recipient, Message: msg, Type: domain.TypeOrderStatusUpdate}
	if err := f.repo.CreateBatch(ctx, []*domain.Notification{n}); err != nil {
		return err
	}
	f.metrics.RecordNotifications(string(domain.TypeOrderStatusUpdate), 1)

	f.publish(ctx, rtdomain.UserGroup(recipient), notificationFrame(n))
	f.publish(ctx, rtdomain.UserOrdersGroup(recipient), rtdomain.OrderFrame{
		Type: rtdomain.FrameStatusUpdate,
		Message: rtdomain.OrderMessage{
			NotificationType: rtdomain.FrameStatusUpdate,
			OrderID:          evt.OrderID,
			OrderNumber:      evt.Number,
			NewStatus:        string(evt.NewStatus),
		},
	})

	f.sendPush(ctx, recipient, evt, msg)
	return nil
}

func (f *FanOut) sendPush(ctx context.Context, recipient uint, evt orderdomain.OrderStatusChangedEvent, body string) {
	if f.push == nil {
		return
	}
	u, err := f.users.Get(ctx, recipient)
	if err != nil {
		f.logger.WarnContext(ctx, "push skipped, recipient lookup failed", "user_id", recipient, "error", err)
		return
	}
	if u.PushToken == "" {
		return
	}
	err = f.push.Send(ctx, domain.PushMessage{
		Token: u.PushToken,
		Title: "Your Order is on its way!",
		Body:  body,
		Data: map[string]string{
			"order_id":          strconv.FormatUint(uint64(evt.OrderID), 10),
			"order_number":      evt.Number,
			"notification_type": string(domain.TypeOrderStatusUpdate),
		},
	})
	if err != nil {
		f.logger.WarnContext(ctx, "push delivery failed", "user_id", recipient, "order_number", evt.Number, "error", err)
	}
}

func (f *FanOut) publish(ctx context.Context, group string, frame any) {
	kind := rtdomain.GroupKind(group)
	if err := f.publisher.Publish(ctx, group, frame); err != nil {
		f.metrics.RecordPublish(kind, "error")
		f.logger.WarnContext(ctx, "realtime publish failed", "group", group, "error", err)
		return
	}
	f.metrics.RecordPublish(kind, "ok")
}

func notificationFrame(n *domain.Notification) rtdomain.NotificationFrame {
	return rtdomain.NotificationFrame{
		Type:             rtdomain.FrameNotification,
		NotificationID:   n.ID,
		Message:          n.Message,
		NotificationType: string(n.Type),
		IsRead:           n.IsRead,
		CreatedAt:        n.CreatedAt,
	}
}
