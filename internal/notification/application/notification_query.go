package application

import (
	"context"
	"time"

	authdomain "github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/internal/notification/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

// NotificationDTO 通知视图
type NotificationDTO struct {
	ID               uint      `json:"id"`
	Message          string    `json:"message"`
	NotificationType string    `json:"notification_type"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// NotificationQuery 当前用户的通知读取与已读标记
type NotificationQuery struct {
	repo domain.NotificationRepository
}

func NewNotificationQuery(repo domain.NotificationRepository) *NotificationQuery {
	return &NotificationQuery{repo: repo}
}

func (q *NotificationQuery) List(ctx context.Context, actor authdomain.Principal, unreadOnly bool, limit, offset int) ([]*NotificationDTO, int64, error) {
	if actor.UserID == 0 {
		return nil, 0, errorx.Unauthenticated("notifications require a user")
	}
	notes, total, err := q.repo.ListByRecipient(ctx, domain.ListFilter{
		RecipientID: actor.UserID,
		UnreadOnly:  unreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]*NotificationDTO, 0, len(notes))
	for _, n := range notes {
		out = append(out, &NotificationDTO{
			ID:               n.ID,
			Message:          n.Message,
			NotificationType: string(n.Type),
			IsRead:           n.IsRead,
			CreatedAt:        n.CreatedAt,
		})
	}
	return out, total, nil
}

// MarkAllRead 幂等，返回本次翻转的条数
func (q *NotificationQuery) MarkAllRead(ctx context.Context, actor authdomain.Principal) (int64, error) {
	if actor.UserID == 0 {
		return 0, errorx.Unauthenticated("notifications require a user")
	}
	return q.repo.MarkAllRead(ctx, actor.UserID)
}
