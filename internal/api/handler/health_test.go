package handler

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/testutil"
)

func TestHealthHandler_DatabaseOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	router := gin.New()
	router.GET("/healthz", NewHealthHandler(db, nil).Check)

	resp := parseResponse(t, performRequest(router, "GET", "/healthz", nil))

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "ok", data["database"])
	assert.Equal(t, "disabled", data["redis"])
}

func TestHealthHandler_WithRedis(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	router := gin.New()
	router.GET("/healthz", NewHealthHandler(db, rdb).Check)

	resp := parseResponse(t, performRequest(router, "GET", "/healthz", nil))
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "ok", dataMap(t, resp)["redis"])

	mr.Close()
	resp = parseResponse(t, performRequest(router, "GET", "/healthz", nil))
	assert.Equal(t, response.CodeTransientError, resp.Code)
	assert.Equal(t, "down", dataMap(t, resp)["redis"])
}
