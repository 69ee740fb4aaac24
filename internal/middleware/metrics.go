package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"rag-keeper/services"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 按路由模板统计请求数和处理时间
 * - 状态码 >= 400 的请求计为错误
 * - 未匹配路由的请求记在 "unmatched" 下，避免标签基数膨胀
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		services.IncrementRequestCount(route)
		services.RecordRequestDuration(route, time.Since(start).Seconds())
		if c.Writer.Status() >= 400 {
			services.IncrementErrorCount(route)
		}
	}
}

/**
 * 获取总请求数
 * @returns {int64} 返回总请求数
 */
func GetTotalRequests() int64 {
	return services.GetTotalRequestCount()
}

/**
 * 获取错误请求数
 * @returns {int64} 返回错误请求数
 */
func GetErrorRequests() int64 {
	return services.GetTotalErrorCount()
}
