package application

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
	"github.com/wyfcoding/retailops/pkg/logger"
)

// UserDTO 用户信息
type UserDTO struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsStaff     bool   `json:"is_staff"`
	HasPushDest bool   `json:"has_push_token"`
}

// UserService 用户自助操作
type UserService struct {
	repo   domain.UserRepository
	logger *slog.Logger
}

func NewUserService(repo domain.UserRepository) *UserService {
	return &UserService{repo: repo, logger: logger.Module("user")}
}

// Me 返回当前用户
func (s *UserService) Me(ctx context.Context, userID uint) (*UserDTO, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toDTO(u), nil
}

// RegisterPushToken 绑定设备推送令牌，空串表示解绑
func (s *UserService) RegisterPushToken(ctx context.Context, userID uint, token string) error {
	token = strings.TrimSpace(token)
	if len(token) > 255 {
		return errorx.Validation("invalid_push_token", "push token exceeds 255 characters")
	}
	if err := s.repo.UpdatePushToken(ctx, userID, token); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "push token updated", "user_id", userID, "cleared", token == "")
	return nil
}

func toDTO(u *domain.User) *UserDTO {
	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        string(u.Role),
		IsStaff:     u.IsStaff(),
		HasPushDest: u.PushToken != "",
	}
}
