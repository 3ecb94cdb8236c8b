package application

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	orderdomain "github.com/wyfcoding/retailops/internal/order/domain"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// Dispatcher 在请求路径之外执行扇出，实现 order 的 EventDispatcher。
// 任务使用与请求解耦的 context，失败与 panic 只记日志。
type Dispatcher struct {
	fanout  *FanOut
	pool    *pool.Pool
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher workers 为并发上限，池满时提交方等待空位
func NewDispatcher(fanout *FanOut, workers int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		fanout:  fanout,
		pool:    pool.New().WithMaxGoroutines(workers),
		timeout: timeout,
		logger:  logger.Module("notification_dispatcher"),
	}
}

var _ orderdomain.EventDispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) OrderCreated(ctx context.Context, evt orderdomain.OrderCreatedEvent) {
	d.submit(ctx, "order_created", func(ctx context.Context) error {
		return d.fanout.OrderCreated(ctx, evt)
	})
}

func (d *Dispatcher) OrderStatusChanged(ctx context.Context, evt orderdomain.OrderStatusChangedEvent) {
	d.submit(ctx, "order_status_changed", func(ctx context.Context) error {
		return d.fanout.OrderStatusChanged(ctx, evt)
	})
}

func (d *Dispatcher) submit(ctx context.Context, name string, fn func(context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "dispatcher closed, event dropped", "event", name)
		return
	}

	base := context.WithoutCancel(ctx)
	d.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.ErrorContext(base, "fan-out panicked", "event", name,
					"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()

		runCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		start := time.Now()
		if err := fn(runCtx); err != nil {
			d.logger.ErrorContext(runCtx, "fan-out failed", "event", name, "error", err)
			return
		}
		d.logger.DebugContext(runCtx, "fan-out finished", "event", name, "duration", time.Since(start))
	})
}

// Close 拒绝新任务并等待已提交的任务完成
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	d.pool.Wait()
}
