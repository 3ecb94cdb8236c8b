package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/internal/inventory/domain"
	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

var (
	warehouse = authdomain.Principal{UserID: 3, Role: userdomain.RoleWarehouse}
	cashier   = authdomain.Principal{UserID: 4, Role: userdomain.RoleCashier}
)

func TestMovementServiceCreate(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	svc := NewMovementService(ledger, repo)
	ctx := context.Background()
	p := seedProduct(t, repo, 2)

	dto, err := svc.Create(ctx, CreateMovementCommand{
		ProductID: p.ID, MovementType: "in", Quantity: 10, Reason: "purchase", Notes: "proveedor",
	}, warehouse)
	require.NoError(t, err)
	assert.Equal(t, 2, dto.StockBefore)
	assert.Equal(t, 12, dto.StockAfter)
	require.NotNil(t, dto.ActorID)
	assert.Equal(t, uint(3), *dto.ActorID)

	_, err = svc.Create(ctx, CreateMovementCommand{
		ProductID: p.ID, MovementType: "in", Quantity: 1, Reason: "purchase",
	}, cashier)
	assert.Equal(t, errorx.KindPermissionDenied, errorx.KindOf(err))

	_, err = svc.Create(ctx, CreateMovementCommand{
		ProductID: p.ID, MovementType: "sideways", Quantity: 1, Reason: "purchase",
	}, warehouse)
	assert.ErrorIs(t, err, domain.ErrInvalidMovementType)

	_, err = svc.Create(ctx, CreateMovementCommand{
		ProductID: p.ID, MovementType: "out", Quantity: 1, Reason: "purchase",
	}, warehouse)
	assert.ErrorIs(t, err, domain.ErrReasonMismatch)
}

func TestMovementServiceListFilters(t *testing.T) {
	ledger, repo := newLedger(t, domain.OversellClamp)
	svc := NewMovementService(ledger, repo)
	ctx := context.Background()
	a := seedProduct(t, repo, 10)
	b := seedProduct(t, repo, 10)

	for _, cmd := range []CreateMovementCommand{
		{ProductID: a.ID, MovementType: "out", Quantity: 1, Reason: "shrinkage"},
		{ProductID: a.ID, MovementType: "in", Quantity: 2, Reason: "purchase"},
		{ProductID: b.ID, MovementType: "out", Quantity: 3, Reason: "gift"},
	} {
		_, err := svc.Create(ctx, cmd, warehouse)
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, ListMovementsQuery{ProductID: &a.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	items, _, err = svc.List(ctx, ListMovementsQuery{MovementType: "out"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, _, err = svc.List(ctx, ListMovementsQuery{Reason: "gift"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ProductID)

	future := time.Now().Add(time.Hour)
	items, _, err = svc.List(ctx, ListMovementsQuery{From: &future})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, _, err = svc.List(ctx, ListMovementsQuery{Reason: "venta"})
	assert.ErrorIs(t, err, domain.ErrInvalidReason)
}
