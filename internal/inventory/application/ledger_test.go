package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/retailops/internal/inventory/domain"
	"github.com/wyfcoding/retailops/internal/inventory/infrastructure/persistence/mysql"
	"github.com/wyfcoding/retailops/pkg/db/dbtest"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

func newLedger(t *testing.T, policy domain.OversellPolicy) (*Ledger, domain.InventoryRepository) {
	t.Helper()
	d := dbtest.New(t, &mysql.ProductModel{}, &mysql.MovementModel{})
	repo := mysql.NewInventoryRepository(d)
	return NewLedger(repo, policy, nil), repo
}

func seedProduct(t *testing.T, repo domain.InventoryRepository, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: "Arepa", SKU: "AR-1", Price: decimal.RequireFromString("2500"), Stock: stock}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func TestLedgerRecordsEachDirection(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	ctx := context.Background()
	p := seedProduct(t, repo, 10)

	in, err := ledger.RecordInbound(ctx, Entry{ProductID: p.ID, Quantity: 5, Reason: domain.ReasonPurchase})
	require.NoError(t, err)
	assert.Equal(t, 10, in.StockBefore)
	assert.Equal(t, 15, in.StockAfter)

	out, err := ledger.RecordOutbound(ctx, Entry{ProductID: p.ID, Quantity: 4, Reason: domain.ReasonSale, Notes: "Order 20260101-0001"})
	require.NoError(t, err)
	assert.Equal(t, 15, out.StockBefore)
	assert.Equal(t, 11, out.StockAfter)

	adj, err := ledger.RecordAdjustment(ctx, Entry{ProductID: p.ID, Quantity: 9, Reason: domain.ReasonPhysicalCount})
	require.NoError(t, err)
	assert.Equal(t, 11, adj.StockBefore)
	assert.Equal(t, 9, adj.StockAfter)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Stock)

	movements, total, err := repo.ListMovements(ctx, domain.MovementFilter{ProductID: &p.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, domain.MovementAdjust, movements[0].Type, "newest first")
	assert.Equal(t, "Arepa", movements[0].ProductName)
}

func TestLedgerOutboundFloorsAtZero(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	ctx := context.Background()
	p := seedProduct(t, repo, 3)

	mv, err := ledger.RecordOutbound(ctx, Entry{ProductID: p.ID, Quantity: 5, Reason: domain.ReasonSale})
	require.NoError(t, err)
	assert.Equal(t, 3, mv.StockBefore)
	assert.Equal(t, 0, mv.StockAfter)
	assert.Equal(t, 5, mv.Quantity, "the requested quantity is recorded, not the clamped one")

	got, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Stock)
}

func TestLedgerRejectPolicyLeavesStockUntouched(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellReject)
	ctx := context.Background()
	p := seedProduct(t, repo, 3)

	_, err := ledger.RecordOutbound(ctx, Entry{ProductID: p.ID, Quantity: 5, Reason: domain.ReasonSale})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, errorx.KindValidation, errorx.KindOf(err))

	got, _ := repo.GetProduct(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)
	_, total, _ := repo.ListMovements(ctx, domain.MovementFilter{})
	assert.Zero(t, total)
}

func TestLedgerErrors(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	ctx := context.Background()
	p := seedProduct(t, repo, 3)

	_, err := ledger.RecordOutbound(ctx, Entry{ProductID: 999, Quantity: 1, Reason: domain.ReasonSale})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = ledger.RecordInbound(ctx, Entry{ProductID: p.ID, Quantity: 0, Reason: domain.ReasonPurchase})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = ledger.RecordInbound(ctx, Entry{ProductID: p.ID, Quantity: 1, Reason: domain.ReasonSale})
	assert.ErrorIs(t, err, domain.ErrReasonMismatch)
}

// 并发出库后：最终库存 = 初始库存 - Σ实际扣减，且流水首尾相接
func TestLedgerConcurrentOutboundConservesStock(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	ctx := context.Background()
	const initial = 25
	p := seedProduct(t, repo, initial)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			qty := 1 + n%2
			_, err := ledger.RecordOutbound(ctx, Entry{ProductID: p.ID, Quantity: qty, Reason: domain.ReasonSale})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	movements, total, err := repo.ListMovements(ctx, domain.MovementFilter{ProductID: &p.ID})
	require.NoError(t, err)
	require.EqualValues(t, 40, total)

	// 按时间正序回放
	stock := initial
	deducted := 0
	for i := len(movements) - 1; i >= 0; i-- {
		mv := movements[i]
		require.NoError(t, mv.Verify())
		assert.Equal(t, stock, mv.StockBefore, "movement %d does not chain", mv.ID)
		deducted += mv.StockBefore - mv.StockAfter
		stock = mv.StockAfter
	}
	assert.Equal(t, initial, deducted)
	assert.Equal(t, got.Stock, stock)
}
