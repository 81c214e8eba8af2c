package modules

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/oksasatya/swastha-auth/internal/interface/middleware"
)

func TestRouteLimits_NamesKeepSeparateCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	limits := RouteLimits{Redis: rdb, Logger: logger}
	r := gin.New()
	r.Use(middleware.RealIP(false))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/a", limits.Per("first", 1, time.Minute, middleware.KeyByIP()), ok)
	r.GET("/b", limits.Per("second", 1, time.Minute, middleware.KeyByIP()), ok)

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/a"))
	assert.Equal(t, http.StatusOK, get("/b"))
	assert.Equal(t, http.StatusTooManyRequests, get("/a"))
	assert.Equal(t, http.StatusTooManyRequests, get("/b"))

	assert.True(t, mr.Exists("rl:first:ip:192.0.2.1"))
	assert.True(t, mr.Exists("rl:second:ip:192.0.2.1"))
}

func TestRouteLimits_NilRedisDisablesLimiting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", RouteLimits{}.Per("any", 1, time.Minute, middleware.KeyByIP()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
