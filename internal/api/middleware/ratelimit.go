package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/pkg/logger"
	"github.com/pairline/pairline-backend/pkg/ratelimit"
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	Capacity   int64                     // Maximum number of requests
	RefillRate int64                     // Requests per second
	KeyFunc    func(*gin.Context) string // Function to extract rate limit key
}

// RedisRateLimitConfig Redis 기반 Rate Limit 설정
type RedisRateLimitConfig struct {
	Limiter *ratelimit.RedisRateLimiter // Redis Rate Limiter
	Limit   int                         // 윈도우 내 최대 요청 수
	Window  time.Duration               // 윈도우 크기
	KeyFunc func(*gin.Context) string   // 키 추출 함수
}

// ParticipantKeyFunc 경로 파라미터의 참가자 ID 기반 키 (없으면 IP)
func ParticipantKeyFunc(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return fmt.Sprintf("participant:%s", id)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// IPKeyFunc uses only IP address (for public endpoints)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewRateLimiter(config.Capacity, config.RefillRate)

	if config.KeyFunc == nil {
		config.KeyFunc = ParticipantKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per second", config.RefillRate),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))

		c.Next()
	}
}

// RedisRateLimitMiddleware Redis 기반 분산 Rate Limiting 미들웨어
func RedisRateLimitMiddleware(config RedisRateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = ParticipantKeyFunc
	}
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		ctx := context.Background()
		allowed, info, err := config.Limiter.Allow(ctx, key, config.Limit, config.Window)
		if err != nil {
			// Redis 오류 시 로깅하고 요청 허용 (Fail-open)
			logger.Warn("Redis rate limit error", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per %v", config.Limit, config.Window),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// HeartbeatRateLimit 참가자별 heartbeat Rate Limit
func HeartbeatRateLimit(perMinute int) gin.HandlerFunc {
	refill := int64(perMinute) / 60
	if refill < 1 {
		refill = 1
	}
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   int64(perMinute),
		RefillRate: refill,
		KeyFunc:    ParticipantKeyFunc,
	})
}

// PoolEnterRateLimit 참가자별 대기열 입장 Rate Limit
func PoolEnterRateLimit(perMinute int) gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   int64(perMinute),
		RefillRate: 1,
		KeyFunc:    ParticipantKeyFunc,
	})
}

// RedisHeartbeatRateLimit Redis 기반 heartbeat Rate Limit
func RedisHeartbeatRateLimit(limiter *ratelimit.RedisRateLimiter, perMinute int) gin.HandlerFunc {
	return RedisRateLimitMiddleware(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   perMinute,
		Window:  time.Minute,
		KeyFunc: ParticipantKeyFunc,
	})
}

// RedisPoolEnterRateLimit Redis 기반 대기열 입장 Rate Limit
func RedisPoolEnterRateLimit(limiter *ratelimit.RedisRateLimiter, perMinute int) gin.HandlerFunc {
	return RedisRateLimitMiddleware(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   perMinute,
		Window:  time.Minute,
		KeyFunc: ParticipantKeyFunc,
	})
}
