package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/pkg/jwt"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// Auth JWT 认证中间件，令牌由身份服务签发
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		if !setPrincipal(c, tokenString, jwtSecret) {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}
		c.Next()
	}
}

// StreamAuth WebSocket 认证中间件，浏览器无法设置请求头，允许 ?token= 传递
func StreamAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		if !setPrincipal(c, tokenString, jwtSecret) {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, tokenString, jwtSecret string) bool {
	claims, err := jwt.ParseToken(tokenString, jwtSecret)
	if err != nil {
		return false
	}

	role := claims.Role
	if role == "" {
		role = model.RoleReviewer
	}
	c.Set(UserIDKey, claims.UserID)
	c.Set(RoleKey, role)
	return true
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetPrincipal 从上下文获取调用者
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	id, ok := GetUserID(c)
	if !ok {
		return model.Principal{}, false
	}
	role := c.GetString(RoleKey)
	if role == "" {
		role = model.RoleReviewer
	}
	return model.Principal{ID: id, Role: role}, true
}
