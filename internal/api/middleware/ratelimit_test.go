package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/slide_review_server/internal/pkg/ratelimit"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
)

func setupLimiter(t *testing.T, limit int) (*ratelimit.Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return ratelimit.NewLimiter(client, limit, time.Minute), mr
}

func newLimitedRouter(limiter Limiter, perMinute int, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID > 0 {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	router.Use(RateLimit(limiter, perMinute))
	router.POST("/events", func(c *gin.Context) {
		response.Success(c, nil)
	})
	return router
}

func TestRateLimit_AllowsUpToLimit(t *testing.T) {
	limiter, _ := setupLimiter(t, 2)
	router := newLimitedRouter(limiter, 2, 42)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))
		assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeRateLimited, resp.Code)
	assert.Equal(t, "每分钟最多上报 2 批", resp.Message)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_PerReviewer(t *testing.T) {
	limiter, _ := setupLimiter(t, 1)

	first := newLimitedRouter(limiter, 1, 1)
	second := newLimitedRouter(limiter, 1, 2)

	w := httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = httptest.NewRecorder()
	second.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
}

func TestRateLimit_NoUser(t *testing.T) {
	limiter, _ := setupLimiter(t, 1)
	router := newLimitedRouter(limiter, 1, 0)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))

	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := setupLimiter(t, 1)
	mr.Close()
	router := newLimitedRouter(limiter, 1, 42)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/events", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/health", func(c *gin.Context) {
		c.Set(UserIDKey, int64(5))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, buf.String(), `"path":"/health"`)
	assert.Contains(t, buf.String(), `"status":204`)
	assert.Contains(t, buf.String(), `"reviewer_id":5`)
}
