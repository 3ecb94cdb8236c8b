// Package http 鉴权中间件
package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/retailops/internal/auth/domain"
	"github.com/wyfcoding/retailops/pkg/errorx"
	"github.com/wyfcoding/retailops/pkg/response"
)

const principalKey = "auth.principal"

// RequireAuth 校验 Authorization: Bearer <token>
func RequireAuth(a domain.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Error(c, errorx.Unauthenticated("missing bearer token"))
			return
		}

		p, err := a.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(domain.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireRole 主体不满足谓词时返回 403
func RequireRole(allowed func(domain.Principal) bool, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			response.Error(c, errorx.Unauthenticated("authentication required"))
			return
		}
		if !allowed(p) {
			response.Error(c, errorx.PermissionDenied(msg))
			return
		}
		c.Next()
	}
}

// Principal 取出 RequireAuth 写入的主体
func Principal(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

// MustPrincipal 仅在 RequireAuth 之后的处理器中使用
func MustPrincipal(c *gin.Context) domain.Principal {
	p, _ := Principal(c)
	return p
}

// PrincipalKey 供 rate limit 等中间件按用户分桶
func PrincipalKey(c *gin.Context) string {
	if p, ok := Principal(c); ok && p.UserID != 0 {
		return "user:" + strconv.FormatUint(uint64(p.UserID), 10)
	}
	return "ip:" + c.ClientIP()
}
