package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pairline/pairline-backend/internal/api/handlers"
	"github.com/pairline/pairline-backend/internal/api/middleware"
	"github.com/pairline/pairline-backend/internal/config"
	"github.com/pairline/pairline-backend/internal/service"
	"github.com/pairline/pairline-backend/pkg/ratelimit"
)

// Services 라우터에 주입되는 서비스 묶음
type Services struct {
	Pool     *service.PoolService
	Pairing  *service.PairingService
	Outcomes *service.OutcomeService
	Liveness *service.LivenessService

	// RedisLimiter nil이면 인스턴스 로컬 rate limiter로 대체
	RedisLimiter *ratelimit.RedisRateLimiter
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, svcs *Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	participantHandler := handlers.NewParticipantHandler(svcs.Pool, svcs.Pairing, svcs.Liveness)
	sessionHandler := handlers.NewSessionHandler(svcs.Outcomes)
	poolHandler := handlers.NewPoolHandler(svcs.Pool)

	heartbeatLimit := heartbeatLimiter(cfg, svcs.RedisLimiter)
	enterLimit := poolEnterLimiter(cfg, svcs.RedisLimiter)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// Participant routes
		participants := v1.Group("/participants")
		{
			participants.POST("/:id/heartbeat", heartbeatLimit, participantHandler.Heartbeat)
			participants.POST("/:id/pool", enterLimit, participantHandler.EnterPool)
			participants.DELETE("/:id/pool", participantHandler.LeavePool)
			participants.POST("/:id/pair", participantHandler.RequestPair)
			participants.GET("/:id/status", participantHandler.GetStatus)
		}

		// Session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/:id/votes", sessionHandler.CastVote)
			sessions.POST("/:id/release", sessionHandler.Release)
		}

		// Pool routes
		v1.GET("/pool/stats", poolHandler.GetStats)
	}

	return router
}

func heartbeatLimiter(cfg *config.Config, limiter *ratelimit.RedisRateLimiter) gin.HandlerFunc {
	if limiter != nil {
		return middleware.RedisHeartbeatRateLimit(limiter, cfg.HeartbeatRateLimit)
	}
	return middleware.HeartbeatRateLimit(cfg.HeartbeatRateLimit)
}

func poolEnterLimiter(cfg *config.Config, limiter *ratelimit.RedisRateLimiter) gin.HandlerFunc {
	if limiter != nil {
		return middleware.RedisPoolEnterRateLimit(limiter, cfg.PoolEnterRateLimit)
	}
	return middleware.PoolEnterRateLimit(cfg.PoolEnterRateLimit)
}
