// Package application JWT 认证实现
package application

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wyfcoding/retailops/internal/auth/domain"
	userdomain "github.com/wyfcoding/retailops/internal/user/domain"
)

// Claims 令牌声明，user_id 由签发方写入
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator 校验 HS256 令牌，并从用户仓储加载当前角色
type JWTAuthenticator struct {
	secret []byte
	issuer string
	users  userdomain.UserRepository
}

func NewJWTAuthenticator(secret, issuer string, users userdomain.UserRepository) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret), issuer: issuer, users: users}
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, raw string) (domain.Principal, error) {
	if raw == "" {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || claims.UserID == 0 {
		return domain.Principal{}, domain.ErrInvalidToken.WithCause(err)
	}

	u, err := a.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return domain.Principal{}, domain.ErrInvalidToken
		}
		return domain.Principal{}, err
	}
	return domain.Principal{
		UserID:    u.ID,
		Username:  u.DisplayName(),
		Role:      u.Role,
		Superuser: u.IsSuperuser,
	}, nil
}

// Sign 签发令牌。登录不在本服务内，此函数供运维脚本与测试使用。
func (a *JWTAuthenticator) Sign(userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
