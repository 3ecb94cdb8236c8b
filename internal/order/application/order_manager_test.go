package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	invapp "github.com/wyfcoding/retailops/internal/inventory/application"
	invdomain "github.com/wyfcoding/retailops/internal/inventory/domain"
	invmysql "github.com/wyfcoding/retailops/internal/inventory/infrastructure/persistence/mysql"
	"github.com/wyfcoding/retailops/internal/order/domain"
	"github.com/wyfcoding/retailops/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/retailops/internal/order/infrastructure/persistence/mysql"
	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/db"
	"github.com/wyfcoding/retailops/pkg/db/dbtest"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

var (
	seller   = authdomain.Principal{UserID: 2, Username: "vendedor", Role: userdomain.RoleSeller}
	cashier  = authdomain.Principal{UserID: 4, Username: "caja", Role: userdomain.RoleCashier}
	customer = authdomain.Principal{UserID: 7, Username: "ana", Role: userdomain.RoleCustomer}
	other    = authdomain.Principal{UserID: 8, Username: "luis", Role: userdomain.RoleCustomer}
)

type recordingDispatcher struct {
	mu      sync.Mutex
	created []domain.OrderCreatedEvent
	changed []domain.OrderStatusChangedEvent
	// onCreated 在分发时回调，用于断言事务已提交
	onCreated func(domain.OrderCreatedEvent)
}

func (d *recordingDispatcher) OrderCreated(_ context.Context, evt domain.OrderCreatedEvent) {
	if d.onCreated != nil {
		d.onCreated(evt)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, evt)
}

func (d *recordingDispatcher) OrderStatusChanged(_ context.Context, evt domain.OrderStatusChangedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changed = append(d.changed, evt)
}

type fixedPricer struct{ tax, discount decimal.Decimal }

func (p fixedPricer) Price(context.Context, *domain.Order) (decimal.Decimal, decimal.Decimal, error) {
	return p.tax, p.discount, nil
}

type fixture struct {
	db         *db.DB
	manager    *OrderManager
	query      *OrderQuery
	orders     domain.OrderRepository
	inventory  invdomain.InventoryRepository
	dispatcher *recordingDispatcher
	clock      time.Time
}

type fixtureOpts struct {
	policy  invdomain.OversellPolicy
	restock bool
	pricer  domain.Pricer
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.policy == "" {
		o.policy = invdomain.OversellClamp
	}
	models := append([]any{&invmysql.ProductModel{}, &invmysql.MovementModel{}, &messaging.OutboxMessage{}}, ordermysql.Models()...)
	d := dbtest.New(t, models...)

	f := &fixture{
		db:         d,
		orders:     ordermysql.NewOrderRepository(d),
		inventory:  invmysql.NewInventoryRepository(d),
		dispatcher: &recordingDispatcher{},
		clock:      time.Date(2026, 3, 7, 10, 30, 0, 0, time.UTC),
	}
	ledger := invapp.NewLedger(f.inventory, o.policy, nil)
	opts := []Option{
		WithOutbox(messaging.NewOutbox(d)),
		WithClock(func() time.Time { return f.clock }),
	}
	if o.pricer != nil {
		opts = append(opts, WithPricer(o.pricer))
	}
	f.manager = NewOrderManager(f.orders, ledger, f.dispatcher,
		ManagerConfig{Location: time.UTC, RestockOnCancel: o.restock}, opts...)
	f.query = NewOrderQuery(f.orders)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *invdomain.Product {
	t.Helper()
	p := &invdomain.Product{Name: name, SKU: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.inventory.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, id uint) int {
	t.Helper()
	p, err := f.inventory.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) outboxCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Conn(context.Background()).Model(&messaging.OutboxMessage{}).Count(&n).Error)
	return n
}

func simpleOrder(items ...CreateOrderItem) CreateOrderCommand {
	return CreateOrderCommand{CustomerName: "Ana", PaymentMethod: "cash", Items: items}
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateOrderComputesTotalsAndDecrementsStock(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	arepa := f.product(t, "Arepa", "2500", 10)
	tinto := f.product(t, "Tinto", "1000", 10)

	dto, err := f.manager.CreateOrder(ctx, simpleOrder(
		CreateOrderItem{ProductID: arepa.ID, Quantity: 2},
		CreateOrderItem{ProductID: tinto.ID, Quantity: 3, UnitPrice: price("900")},
	), customer)
	require.NoError(t, err)

	assert.Equal(t, "20260307-0001", dto.Number)
	assert.Equal(t, string(domain.StatusPending), dto.Status)
	require.Len(t, dto.Items, 2)
	assert.True(t, dto.Items[0].UnitPrice.Equal(decimal.RequireFromString("2500")), "price snapshot from product")
	assert.True(t, dto.Items[1].UnitPrice.Equal(decimal.RequireFromString("900")), "client unit price honoured")
	assert.True(t, dto.Subtotal.Equal(decimal.RequireFromString("7700")))
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("7700")))
	require.NotNil(t, dto.CreatedBy)
	assert.Equal(t, customer.UserID, *dto.CreatedBy)

	assert.Equal(t, 8, f.stock(t, arepa.ID))
	assert.Equal(t, 7, f.stock(t, tinto.ID))

	movements, total, err := f.inventory.ListMovements(ctx, invdomain.MovementFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	for _, mv := range movements {
		assert.Equal(t, invdomain.MovementOut, mv.Type)
		assert.Equal(t, invdomain.ReasonSale, mv.Reason)
		assert.Equal(t, "Order 20260307-0001", mv.Notes)
	}

	stored, err := f.query.Get(ctx, dto.ID, customer)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, it := range stored.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.True(t, stored.TotalAmount.Equal(sum))
	assert.EqualValues(t, 1, f.outboxCount(t))
}

func TestCreateOrderNumbering(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	p := f.product(t, "Arepa", "2500", 100)
	item := CreateOrderItem{ProductID: p.ID, Quantity: 1}

	first, err := f.manager.CreateOrder(ctx, simpleOrder(item), customer)
	require.NoError(t, err)
	second, err := f.manager.CreateOrder(ctx, simpleOrder(item), customer)
	require.NoError(t, err)
	assert.Equal(t, "20260307-0001", first.Number)
	assert.Equal(t, "20260307-0002", second.Number)

	f.clock = f.clock.Add(24 * time.Hour)
	third, err := f.manager.CreateOrder(ctx, simpleOrder(item), customer)
	require.NoError(t, err)
	assert.Equal(t, "20260308-0001", third.Number)
}

func TestCreateOrderIsAtomic(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	p := f.product(t, "Arepa", "2500", 10)

	_, err := f.manager.CreateOrder(ctx, simpleOrder(
		CreateOrderItem{ProductID: p.ID, Quantity: 2},
		CreateOrderItem{ProductID: 999, Quantity: 1},
	), customer)
	require.Error(t, err)
	assert.ErrorIs(t, err, invdomain.ErrProductNotFound)
	assert.Equal(t, errorx.KindNotFound, errorx.KindOf(err))

	assert.Equal(t, 10, f.stock(t, p.ID))
	_, mvCount, err := f.inventory.ListMovements(ctx, invdomain.MovementFilter{})
	require.NoError(t, err)
	assert.Zero(t, mvCount)
	_, orderCount, err := f.orders.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, orderCount)
	assert.Zero(t, f.outboxCount(t))
	assert.Empty(t, f.dispatcher.created)

	// 回滚后序号不被占用
	dto, err := f.manager.CreateOrder(ctx, simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1}), customer)
	require.NoError(t, err)
	assert.Equal(t, "20260307-0001", dto.Number)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	p := f.product(t, "Arepa", "2500", 10)
	item := CreateOrderItem{ProductID: p.ID, Quantity: 1}

	cases := []struct {
		name string
		cmd  CreateOrderCommand
		who  authdomain.Principal
		want error
	}{
		{"empty", simpleOrder(), customer, domain.ErrEmptyOrder},
		{"no name", CreateOrderCommand{CustomerName: "  ", PaymentMethod: "cash", Items: []CreateOrderItem{item}}, customer, domain.ErrCustomerNameRequired},
		{"zero qty", simpleOrder(CreateOrderItem{ProductID: p.ID}), customer, domain.ErrInvalidQuantity},
		{"negative price", simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1, UnitPrice: price("-1")}), customer, domain.ErrInvalidUnitPrice},
		{"sub-cent price", simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 2, UnitPrice: price("0.333")}), customer, domain.ErrInvalidUnitPrice},
		{"payment", CreateOrderCommand{CustomerName: "Ana", PaymentMethod: "bitcoin", Items: []CreateOrderItem{item}}, customer, domain.ErrInvalidPayment},
		{"cancelled", CreateOrderCommand{CustomerName: "Ana", PaymentMethod: "cash", Status: "cancelled", Items: []CreateOrderItem{item}}, cashier, domain.ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.manager.CreateOrder(ctx, tc.cmd, tc.who)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, errorx.KindValidation, errorx.KindOf(err))
		})
	}

	_, err := f.manager.CreateOrder(ctx, CreateOrderCommand{
		CustomerName: "Ana", PaymentMethod: "cash", Status: "completed", Items: []CreateOrderItem{item},
	}, customer)
	assert.Equal(t, errorx.KindPermissionDenied, errorx.KindOf(err))

	dto, err := f.manager.CreateOrder(ctx, CreateOrderCommand{
		CustomerName: "Mostrador", PaymentMethod: "card", Status: "completed", Items: []CreateOrderItem{item},
	}, cashier)
	require.NoError(t, err)
	assert.Equal(t, "completed", dto.Status)
	assert.Equal(t, 9, f.stock(t, p.ID))
}

func TestCreateOrderAppliesPricer(t *testing.T) {
	f := newFixture(t, fixtureOpts{pricer: fixedPricer{
		tax:      decimal.RequireFromString("190"),
		discount: decimal.RequireFromString("100"),
	}})
	p := f.product(t, "Arepa", "1000", 10)

	dto, err := f.manager.CreateOrder(context.Background(), simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1}), customer)
	require.NoError(t, err)
	assert.True(t, dto.Subtotal.Equal(decimal.RequireFromString("1000")))
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("1090")), dto.TotalAmount.String())
}

func TestCreateOrderOversell(t *testing.T) {
	t.Run("clamp floors stock at zero", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		p := f.product(t, "Arepa", "1000", 2)
		dto, err := f.manager.CreateOrder(context.Background(), simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 5}), customer)
		require.NoError(t, err)
		assert.Equal(t, 5, dto.Items[0].Quantity)
		assert.Equal(t, 0, f.stock(t, p.ID))
	})

	t.Run("reject fails the whole order", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{policy: invdomain.OversellReject})
		a := f.product(t, "Arepa", "1000", 10)
		b := f.product(t, "Tinto", "1000", 2)
		_, err := f.manager.CreateOrder(context.Background(), simpleOrder(
			CreateOrderItem{ProductID: a.ID, Quantity: 1},
			CreateOrderItem{ProductID: b.ID, Quantity: 5},
		), customer)
		assert.ErrorIs(t, err, invdomain.ErrInsufficientStock)
		assert.Equal(t, 10, f.stock(t, a.ID))
		assert.Equal(t, 2, f.stock(t, b.ID))
	})
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t, fixtureOpts{policy: invdomain.OversellReject})
	p := f.product(t, "Arepa", "1000", 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		failed  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dto, err := f.manager.CreateOrder(context.Background(), simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1}), customer)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, invdomain.ErrInsufficientStock)
				failed++
				return
			}
			assert.False(t, numbers[dto.Number], "duplicate number %s", dto.Number)
			numbers[dto.Number] = true
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, 5)
	assert.Equal(t, 5, failed)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestDispatchHappensAfterCommit(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	p := f.product(t, "Arepa", "1000", 5)

	var visible bool
	f.dispatcher.onCreated = func(evt domain.OrderCreatedEvent) {
		_, err := f.orders.Get(context.Background(), evt.OrderID)
		visible = err == nil
	}

	dto, err := f.manager.CreateOrder(context.Background(), simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1}), customer)
	require.NoError(t, err)
	assert.True(t, visible, "order must be committed before dispatch")

	require.Len(t, f.dispatcher.created, 1)
	evt := f.dispatcher.created[0]
	assert.Equal(t, dto.Number, evt.Number)
	assert.Equal(t, "Ana", evt.CustomerName)
	assert.True(t, evt.Total.Equal(decimal.RequireFromString("1000")))
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, fixtureOpts{restock: true})
	ctx := context.Background()
	p := f.product(t, "Arepa", "1000", 10)

	a, err := f.manager.CreateOrder(ctx, simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 3}), customer)
	require.NoError(t, err)
	b, err := f.manager.CreateOrder(ctx, simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 2}), customer)
	require.NoError(t, err)
	require.Equal(t, 5, f.stock(t, p.ID))

	_, err = f.manager.UpdateStatus(ctx, a.ID, "completed", customer)
	assert.Equal(t, errorx.KindPermissionDenied, errorx.KindOf(err))
	_, err = f.manager.UpdateStatus(ctx, a.ID, "completed", cashier)
	assert.Equal(t, errorx.KindPermissionDenied, errorx.KindOf(err))

	done, err := f.manager.UpdateStatus(ctx, a.ID, "completed", seller)
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	_, err = f.manager.UpdateStatus(ctx, a.ID, "cancelled", seller)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.manager.UpdateStatus(ctx, 999, "completed", seller)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	cancelled, err := f.manager.UpdateStatus(ctx, b.ID, "cancelled", seller)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, 7, f.stock(t, p.ID))

	movements, _, err := f.inventory.ListMovements(ctx, invdomain.MovementFilter{Reason: invdomain.ReasonCancellation})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 2, movements[0].Quantity)
	assert.Equal(t, invdomain.MovementIn, movements[0].Type)

	require.Len(t, f.dispatcher.changed, 2)
	assert.Equal(t, domain.StatusPending, f.dispatcher.changed[0].OldStatus)
	assert.Equal(t, domain.StatusCompleted, f.dispatcher.changed[0].NewStatus)
	require.NotNil(t, f.dispatcher.changed[0].CreatedBy)
	assert.Equal(t, customer.UserID, *f.dispatcher.changed[0].CreatedBy)
	assert.Equal(t, domain.StatusCancelled, f.dispatcher.changed[1].NewStatus)
	assert.EqualValues(t, 4, f.outboxCount(t))
}

func TestCancelWithoutRestock(t *testing.T) {
	f := newFixture(t, fixtureOpts{restock: false})
	ctx := context.Background()
	p := f.product(t, "Arepa", "1000", 10)

	o, err := f.manager.CreateOrder(ctx, simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 3}), customer)
	require.NoError(t, err)
	_, err = f.manager.UpdateStatus(ctx, o.ID, "cancelled", seller)
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, p.ID))
}

func TestOrderQueryVisibility(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	p := f.product(t, "Arepa", "1000", 100)

	mine, err := f.manager.CreateOrder(ctx, simpleOrder(CreateOrderItem{ProductID: p.ID, Quantity: 1}), customer)
	require.NoError(t, err)
	theirs, err := f.manager.CreateOrder(ctx, CreateOrderCommand{
		CustomerName: "Luis", PaymentMethod: "nequi", Items: []CreateOrderItem{{ProductID: p.ID, Quantity: 1}},
	}, other)
	require.NoError(t, err)

	_, err = f.query.Get(ctx, theirs.ID, customer)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = f.query.Get(ctx, theirs.ID, seller)
	assert.NoError(t, err)

	items, total, err := f.query.List(ctx, ListOrdersQuery{}, customer)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)

	items, total, err = f.query.List(ctx, ListOrdersQuery{}, seller)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, theirs.ID, items[0].ID, "newest first")

	items, _, err = f.query.List(ctx, ListOrdersQuery{PaymentMethod: "nequi"}, seller)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, theirs.ID, items[0].ID)

	_, _, err = f.query.List(ctx, ListOrdersQuery{Status: "shipped"}, seller)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
