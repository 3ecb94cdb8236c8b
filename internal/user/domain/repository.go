package domain

import "context"

// UserRepository 用户仓储接口
type UserRepository interface {
	// Create 新建用户
	Create(ctx context.Context, user *User) error
	// Get 按 ID 获取，不存在返回 ErrUserNotFound
	Get(ctx context.Context, id uint) (*User, error)
	// ListStaff 返回员工角色或超级用户，每人一条
	ListStaff(ctx context.Context) ([]*User, error)
	// UpdatePushToken 注册或清除推送令牌
	UpdatePushToken(ctx context.Context, id uint, token string) error
}
