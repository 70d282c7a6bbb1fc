package breaker

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinMiddleware 创建 Gin 熔断中间件
// 按提取出的键独立熔断；熔断器拒绝时直接返回 503，后端处理函数不会执行。
// 响应状态码 >= 500 计为一次失败，其余计为成功。
//
// 参数:
//   - reg: 熔断器注册表
//   - cfg: 新熔断器的配置（已存在的键沿用首次创建时的配置）
//   - keyFunc: 从请求中提取熔断键的函数，nil 时按路由模板熔断
//
// 使用示例:
//
//	r := gin.New()
//	r.Use(breaker.GinMiddleware(reg, breaker.DefaultConfig(), nil))
func GinMiddleware(
	reg *Registry,
	cfg *Config,
	keyFunc func(*gin.Context) string,
) gin.HandlerFunc {
	if keyFunc == nil {
		// 默认按路由模板熔断，未注册的路由退回原始路径
		keyFunc = func(c *gin.Context) string {
			if path := c.FullPath(); path != "" {
				return path
			}
			return c.Request.URL.Path
		}
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			// 无法提取键时放行，不参与熔断
			c.Next()
			return
		}

		cb := reg.Get(key, cfg)
		if !cb.CanExecute() {
			cb.rec.reject()
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "circuit breaker open",
			})
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			cb.RecordFailure(fmt.Sprintf("upstream returned status %d", status))
		} else {
			cb.RecordSuccess()
		}
	}
}
