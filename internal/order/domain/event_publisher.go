package domain

import "context"

// EventDispatcher 事务提交后的事件分发，实现方不得阻塞调用方，失败自行处理
type EventDispatcher interface {
	OrderCreated(ctx context.Context, evt OrderCreatedEvent)
	OrderStatusChanged(ctx context.Context, evt OrderStatusChangedEvent)
}

// EventOutbox 事务内写入待投递事件，与业务数据一同提交或回滚
type EventOutbox interface {
	Append(ctx context.Context, eventType, key string, payload any) error
}

// NoopDispatcher 不分发任何事件
type NoopDispatcher struct{}

func (NoopDispatcher) OrderCreated(context.Context, OrderCreatedEvent)             {}
func (NoopDispatcher) OrderStatusChanged(context.Context, OrderStatusChangedEvent) {}
