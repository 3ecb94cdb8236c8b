package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/retailops/internal/notification/domain"
	"github.com/wyfcoding/retailops/pkg/db"

	usermysql "github.com/wyfcoding/retailops/internal/user/infrastructure/persistence/mysql"
)

// NotificationModel 通知表映射，接收人删除时级联删除
type NotificationModel struct {
	ID          uint                `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time           `gorm:"column:created_at;index"`
	RecipientID uint                `gorm:"column:recipient_id;not null;index:idx_recipient_read,priority:1"`
	Recipient   usermysql.UserModel `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
	Message     string              `gorm:"column:message;type:text;not null"`
	Type        string              `gorm:"column:notification_type;type:varchar(50);not null"`
	IsRead      bool                `gorm:"column:is_read;not null;default:false;index:idx_recipient_read,priority:2"`
}

func (NotificationModel) TableName() string { return "notifications" }

type notificationRepository struct {
	db *db.DB
}

func NewNotificationRepository(d *db.DB) domain.NotificationRepository {
	return &notificationRepository{db: d}
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notes []*domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	models := make([]*NotificationModel, 0, len(notes))
	for _, n := range notes {
		models = append(models, &NotificationModel{
			RecipientID: n.RecipientID,
			Message:     n.Message,
			Type:        string(n.Type),
			IsRead:      n.IsRead,
		})
	}
	if err := r.db.Conn(ctx).Omit(clause.Associations).Create(&models).Error; err != nil {
		return db.Classify(err)
	}
	for i, m := range models {
		notes[i].ID, notes[i].CreatedAt = m.ID, m.CreatedAt
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, f domain.ListFilter) ([]*domain.Notification, int64, error) {
	q := r.db.Conn(ctx).Model(&NotificationModel{}).Where("recipient_id = ?", f.RecipientID)
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	q = q.Order("created_at desc").Order("id desc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var models []NotificationModel
	if err := q.Find(&models).Error; err != nil {
		return nil, 0, db.Classify(err)
	}

	out := make([]*domain.Notification, 0, len(models))
	for _, m := range models {
		out = append(out, &domain.Notification{
			ID:          m.ID,
			RecipientID: m.RecipientID,
			Message:     m.Message,
			Type:        domain.Type(m.Type),
			IsRead:      m.IsRead,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out, total, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.Conn(ctx).Model(&NotificationModel{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, db.Classify(res.Error)
	}
	return res.RowsAffected, nil
}
