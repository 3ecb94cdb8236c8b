// Package domain 用户与角色模型
package domain

import (
	"time"

	"github.com/wyfcoding/retailops/pkg/errorx"
)

// Role 用户角色，闭合集合
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSeller    Role = "seller"
	RoleWarehouse Role = "warehouse"
	RoleCashier   Role = "cashier"
	RoleCustomer  Role = "customer"
)

var (
	ErrUserNotFound = errorx.NotFound("user_not_found", "user not found")
	ErrInvalidRole  = errorx.Validation("invalid_role", "unknown role")
)

// ParseRole 解析角色字符串
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleSeller, RoleWarehouse, RoleCashier, RoleCustomer:
		return r, nil
	default:
		return "", ErrInvalidRole.WithMessage("unknown role %q", s)
	}
}

// StaffRoles 返回所有员工角色
func StaffRoles() []Role {
	return []Role{RoleAdmin, RoleSeller, RoleWarehouse, RoleCashier}
}

// IsStaff 员工角色接收新订单通知
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleWarehouse, RoleCashier:
		return true
	case RoleCustomer:
		return false
	default:
		return false
	}
}

// CanManageOrders 可变更任意订单状态
func (r Role) CanManageOrders() bool {
	switch r {
	case RoleAdmin, RoleSeller:
		return true
	default:
		return false
	}
}

// CanRecordMovements 可登记手工库存流水
func (r Role) CanRecordMovements() bool {
	switch r {
	case RoleAdmin, RoleWarehouse:
		return true
	default:
		return false
	}
}

// User 系统用户。超级用户无论角色都视为员工。
type User struct {
	ID          uint
	Username    string
	Email       string
	Role        Role
	IsSuperuser bool
	// 移动端推送令牌，为空表示未注册设备
	PushToken string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) IsStaff() bool {
	return u.IsSuperuser || u.Role.IsStaff()
}

// DisplayName 优先用户名，其次邮箱
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
