package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDisabledCache_GetReturnsErrorSetIsNoop(t *testing.T) {
	c, err := NewCache(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	var target string
	assert.Error(t, c.Get(context.Background(), "some-key", &target))
	assert.NoError(t, c.Set(context.Background(), "some-key", "value", time.Minute))
	assert.NoError(t, c.Close())
}

func TestCacheMiddleware_DisabledCachePassesThrough(t *testing.T) {
	c, err := NewCache(Config{Enabled: false})
	require.NoError(t, err)

	router := gin.New()
	calls := 0
	router.GET("/api/users", CacheMiddleware(c, time.Minute, func(*gin.Context) string {
		return UserListKey("tenant-1")
	}), func(ctx *gin.Context) {
		calls++
		ctx.JSON(http.StatusOK, gin.H{"calls": calls})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, calls, "disabled cache must never short-circuit the handler")
}

func TestCacheMiddleware_SkipsNonGETRequests(t *testing.T) {
	c, err := NewCache(Config{Enabled: false})
	require.NoError(t, err)

	router := gin.New()
	calls := 0
	router.POST("/api/users", CacheMiddleware(c, time.Minute, func(*gin.Context) string {
		return UserListKey("tenant-1")
	}), func(ctx *gin.Context) {
		calls++
		ctx.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestKeyBuilders_ScopeByTenant(t *testing.T) {
	assert.NotEqual(t, UserListKey("tenant-a"), UserListKey("tenant-b"))
	assert.NotEqual(t, AuditLogListKey("tenant-a"), UserListKey("tenant-a"))
}
