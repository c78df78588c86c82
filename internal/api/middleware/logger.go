package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/pkg/logger"
)

// Logger HTTP 요청 로깅 미들웨어
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency", latency,
			"ip", c.ClientIP(),
		}
		// 참가자/세션 경로면 대상 ID를 함께 남긴다
		if id := c.Param("id"); id != "" {
			fields = append(fields, "subject", id)
		}

		logger.Info("HTTP Request", fields...)
	}
}
