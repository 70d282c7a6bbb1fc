package breaker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, reg *Registry, cfg *Config, keyFunc func(*gin.Context) string) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(reg, cfg, keyFunc))
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "boom"})
	})
	r.GET("/teapot", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"status": "short and stout"})
	})
	return r
}

func doRequest(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddleware(t *testing.T) {
	t.Run("正常请求放行并计成功", func(t *testing.T) {
		reg := newTestRegistry(t)
		r := newTestRouter(t, reg, fastConfig(), nil)

		w := doRequest(r, "/ok")
		assert.Equal(t, http.StatusOK, w.Code)

		cb, ok := reg.Lookup("/ok")
		require.True(t, ok, "默认按路由模板创建熔断器")
		assert.Equal(t, uint64(1), cb.Stats().TotalSuccesses)
	})

	t.Run("5xx 响应计失败", func(t *testing.T) {
		reg := newTestRegistry(t)
		r := newTestRouter(t, reg, fastConfig(), nil)

		doRequest(r, "/fail")

		cb, ok := reg.Lookup("/fail")
		require.True(t, ok)
		assert.Equal(t, 1, cb.Stats().FailureCount)
	})

	t.Run("4xx 响应计成功", func(t *testing.T) {
		reg := newTestRegistry(t)
		r := newTestRouter(t, reg, fastConfig(), nil)

		doRequest(r, "/teapot")

		cb, _ := reg.Lookup("/teapot")
		assert.Equal(t, uint64(1), cb.Stats().TotalSuccesses)
		assert.Zero(t, cb.Stats().FailureCount)
	})

	t.Run("熔断后返回 503 且路由不执行", func(t *testing.T) {
		reg := newTestRegistry(t)
		cfg := fastConfig()
		r := newTestRouter(t, reg, cfg, nil)

		for i := 0; i < cfg.FailureThreshold; i++ {
			doRequest(r, "/fail")
		}
		cb, _ := reg.Lookup("/fail")
		require.Equal(t, StateOpen, cb.State())

		w := doRequest(r, "/fail")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"error": "circuit breaker open"}`, w.Body.String())
	})

	t.Run("路由之间独立熔断", func(t *testing.T) {
		reg := newTestRegistry(t)
		cfg := fastConfig()
		r := newTestRouter(t, reg, cfg, nil)

		for i := 0; i < cfg.FailureThreshold; i++ {
			doRequest(r, "/fail")
		}

		w := doRequest(r, "/ok")
		assert.Equal(t, http.StatusOK, w.Code, "其他路由不受影响")
	})

	t.Run("冷却期后恢复", func(t *testing.T) {
		reg := newTestRegistry(t)
		cfg := fastConfig()
		r := newTestRouter(t, reg, cfg, nil)

		for i := 0; i < cfg.FailureThreshold; i++ {
			doRequest(r, "/fail")
		}
		require.Equal(t, http.StatusServiceUnavailable, doRequest(r, "/fail").Code)

		time.Sleep(60 * time.Millisecond)
		// 冷却期满放行探测，这次后端恢复返回 500 之外的状态码
		w := doRequest(r, "/fail")
		assert.NotEqual(t, http.StatusServiceUnavailable, w.Code, "冷却期满后应放行探测请求")
	})

	t.Run("自定义 KeyFunc", func(t *testing.T) {
		reg := newTestRegistry(t)
		keyFunc := func(c *gin.Context) string {
			return "tenant:" + c.GetHeader("X-Tenant")
		}
		r := newTestRouter(t, reg, fastConfig(), keyFunc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Tenant", "acme")
		r.ServeHTTP(w, req)

		_, ok := reg.Lookup("tenant:acme")
		assert.True(t, ok, "应按自定义键创建熔断器")
	})

	t.Run("空键放行且不创建熔断器", func(t *testing.T) {
		reg := newTestRegistry(t)
		keyFunc := func(c *gin.Context) string { return "" }
		r := newTestRouter(t, reg, fastConfig(), keyFunc)

		w := doRequest(r, "/ok")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, reg.Len())
	})
}
