// Package domain 鉴权主体与认证端口
package domain

import (
	"context"

	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
)

var ErrInvalidToken = errorx.Unauthenticated("invalid or expired token")

// Principal 已认证的调用方
type Principal struct {
	UserID    uint
	Username  string
	Role      userdomain.Role
	Superuser bool
}

func (p Principal) IsStaff() bool {
	return p.Superuser || p.Role.IsStaff()
}

func (p Principal) CanManageOrders() bool {
	return p.Superuser || p.Role.CanManageOrders()
}

func (p Principal) CanRecordMovements() bool {
	return p.Superuser || p.Role.CanRecordMovements()
}

// ActorID 无用户 ID 时返回 nil，便于写入可空的创建人字段
func (p Principal) ActorID() *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// Authenticator 校验令牌并解析出主体
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

type principalKey struct{}

// WithPrincipal 把主体放入 context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext 取出主体
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
