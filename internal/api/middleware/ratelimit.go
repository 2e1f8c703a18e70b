package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/slide_review_server/internal/pkg/response"
)

// Limiter 限流器（Redis 实现见 pkg/ratelimit）
type Limiter interface {
	Allow(ctx context.Context, scope string) (bool, int, error)
}

// RateLimit 按评审员限制上报频率，须在 Auth 之后使用
func RateLimit(limiter Limiter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), "ingest:"+strconv.FormatInt(userID, 10))
		if err != nil {
			// 限流存储不可用时放行，避免丢失事件
			slog.Warn("Rate limiter unavailable", "reviewer_id", userID, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			response.RateLimitError(c, fmt.Sprintf("每分钟最多上报 %d 批", perMinute))
			c.Abort()
			return
		}

		c.Next()
	}
}
