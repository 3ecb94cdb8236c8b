package application

import (
	"context"
	"log/slog"
	"time"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/internal/inventory/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// CreateMovementCommand 手工登记库存流水
type CreateMovementCommand struct {
	ProductID    uint
	MovementType string
	Quantity     int
	Reason       string
	Notes        string
}

// ListMovementsQuery 审计查询
type ListMovementsQuery struct {
	ProductID    *uint
	MovementType string
	Reason       string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// MovementDTO 流水视图
type MovementDTO struct {
	ID           uint      `json:"id"`
	ProductID    uint      `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	ProductSKU   string    `json:"product_sku,omitempty"`
	MovementType string    `json:"movement_type"`
	Quantity     int       `json:"quantity"`
	Reason       string    `json:"reason"`
	Notes        string    `json:"notes"`
	StockBefore  int       `json:"stock_before"`
	StockAfter   int       `json:"stock_after"`
	ActorID      *uint     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// MovementService 管理员手工库存操作与流水查询
type MovementService struct {
	ledger *Ledger
	repo   domain.InventoryRepository
	logger *slog.Logger
}

func NewMovementService(ledger *Ledger, repo domain.InventoryRepository) *MovementService {
	return &MovementService{ledger: ledger, repo: repo, logger: logger.Module("inventory")}
}

// Create 在独立事务中登记一条流水，操作人取自认证主体
func (s *MovementService) Create(ctx context.Context, cmd CreateMovementCommand, actor authdomain.Principal) (*MovementDTO, error) {
	if !actor.CanRecordMovements() {
		return nil, errorx.PermissionDenied("only admin or warehouse staff may record inventory movements")
	}

	t, err := domain.ParseMovementType(cmd.MovementType)
	if err != nil {
		return nil, err
	}
	reason, err := domain.ParseReason(cmd.Reason)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		ProductID: cmd.ProductID,
		Quantity:  cmd.Quantity,
		Reason:    reason,
		Notes:     cmd.Notes,
		ActorID:   actor.ActorID(),
	}

	var mv *domain.Movement
	switch t {
	case domain.MovementIn:
		mv, err = s.ledger.RecordInbound(ctx, entry)
	case domain.MovementOut:
		mv, err = s.ledger.RecordOutbound(ctx, entry)
	case domain.MovementAdjust:
		mv, err = s.ledger.RecordAdjustment(ctx, entry)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "inventory movement recorded",
		"movement_id", mv.ID, "product_id", mv.ProductID, "type", mv.Type,
		"stock_before", mv.StockBefore, "stock_after", mv.StockAfter, "actor_id", actor.UserID)
	return toMovementDTO(mv), nil
}

// List 按条件查询流水，最新在前
func (s *MovementService) List(ctx context.Context, q ListMovementsQuery) ([]*MovementDTO, int64, error) {
	f := domain.MovementFilter{
		ProductID: q.ProductID,
		From:      q.From,
		To:        q.To,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if q.MovementType != "" {
		t, err := domain.ParseMovementType(q.MovementType)
		if err != nil {
			return nil, 0, err
		}
		f.Type = t
	}
	if q.Reason != "" {
		r, err := domain.ParseReason(q.Reason)
		if err != nil {
			return nil, 0, err
		}
		f.Reason = r
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, errorx.Validation("invalid_range", "from must be before to")
	}

	movements, total, err := s.repo.ListMovements(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*MovementDTO, 0, len(movements))
	for _, mv := range movements {
		out = append(out, toMovementDTO(mv))
	}
	return out, total, nil
}

func toMovementDTO(mv *domain.Movement) *MovementDTO {
	return &MovementDTO{
		ID:           mv.ID,
		ProductID:    mv.ProductID,
		ProductName:  mv.ProductName,
		ProductSKU:   mv.ProductSKU,
		MovementType: string(mv.Type),
		Quantity:     mv.Quantity,
		Reason:       string(mv.Reason),
		Notes:        mv.Notes,
		StockBefore:  mv.StockBefore,
		StockAfter:   mv.StockAfter,
		ActorID:      mv.ActorID,
		CreatedAt:    mv.CreatedAt,
	}
}
