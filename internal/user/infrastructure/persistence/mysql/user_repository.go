package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/db"
)

// UserModel 用户表映射
type UserModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
	Username    string    `gorm:"column:username;type:varchar(150);uniqueIndex;not null"`
	Email       string    `gorm:"column:email;type:varchar(254)"`
	Role        string    `gorm:"column:role;type:varchar(20);index;not null;default:'customer'"`
	IsSuperuser bool      `gorm:"column:is_superuser;not null;default:false"`
	PushToken   string    `gorm:"column:push_token;type:varchar(255)"`
}

func (UserModel) TableName() string { return "users" }

type userRepository struct {
	db *db.DB
}

func NewUserRepository(d *db.DB) domain.UserRepository {
	return &userRepository{db: d}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.Conn(ctx).Create(m).Error; err != nil {
		return db.Classify(err)
	}
	u.ID = m.ID
	u.CreatedAt = m.CreatedAt
	u.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uint) (*domain.User, error) {
	var m UserModel
	if err := r.db.Conn(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound.WithMessage("user %d not found", id)
		}
		return nil, db.Classify(err)
	}
	return toUser(&m), nil
}

func (r *userRepository) ListStaff(ctx context.Context) ([]*domain.User, error) {
	var models []UserModel
	err := r.db.Conn(ctx).
		Distinct().
		Where("role IN ? OR is_superuser = ?", domain.StaffRoles(), true).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, db.Classify(err)
	}
	users := make([]*domain.User, 0, len(models))
	for i := range models {
		users = append(users, toUser(&models[i]))
	}
	return users, nil
}

func (r *userRepository) UpdatePushToken(ctx context.Context, id uint, token string) error {
	res := r.db.Conn(ctx).Model(&UserModel{}).Where("id = ?", id).Update("push_token", token)
	if res.Error != nil {
		return db.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound.WithMessage("user %d not found", id)
	}
	return nil
}

func toUserModel(u *domain.User) *UserModel {
	role := u.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	return &UserModel{
		ID:          u.ID,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(role),
		IsSuperuser: u.IsSuperuser,
		PushToken:   u.PushToken,
	}
}

func toUser(m *UserModel) *domain.User {
	return &domain.User{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Username:    m.Username,
		Email:       m.Email,
		Role:        domain.Role(m.Role),
		IsSuperuser: m.IsSuperuser,
		PushToken:   m.PushToken,
	}
}
