package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairline/pairline-backend/internal/api"
	"github.com/pairline/pairline-backend/internal/config"
	"github.com/pairline/pairline-backend/internal/directory"
	"github.com/pairline/pairline-backend/internal/repository"
	"github.com/pairline/pairline-backend/internal/service"
	"github.com/pairline/pairline-backend/pkg/database"
	"github.com/pairline/pairline-backend/pkg/distributed"
	"github.com/pairline/pairline-backend/pkg/lock"
	"github.com/pairline/pairline-backend/pkg/logger"
	"github.com/pairline/pairline-backend/pkg/ratelimit"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting Pairline Backend",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	// 저장소 선택: DATABASE_URL이 없으면 인메모리 (개발/테스트 전용)
	var store repository.Store
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL, database.PoolOptions{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()
		store = repository.NewPostgresStore(db)
		logger.Info("Database connection established")
	} else {
		store = repository.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	// Redis 연결 (선택적): 분산 락, 분산 rate limit, 인스턴스 간 조정
	var (
		redisClient  *redis.Client
		lockManager  lock.Manager
		redisLimiter *ratelimit.RedisRateLimiter
		coordinator  *distributed.PairingCoordinator
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "error", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()

		lockManager = lock.NewRedisManager(redisClient)
		redisLimiter = ratelimit.NewRedisRateLimiter(redisClient, "pairline")
		coordinator = distributed.NewPairingCoordinator(redisClient, logger.L())
		logger.Info("Redis connection established")
	} else {
		lockManager = lock.NewLocalManager()
		logger.Warn("REDIS_URL not set, using instance-local locks")
	}

	// 디렉토리 선택: DIRECTORY_URL이 없으면 정적 디렉토리 (개발 전용)
	var dir directory.Directory
	if cfg.DirectoryURL != "" {
		dir = directory.NewHTTPDirectory(cfg.DirectoryURL)
	} else {
		dir = directory.NewStaticDirectory()
		logger.Warn("DIRECTORY_URL not set, using empty static directory")
	}

	// Service 초기화
	fairnessService := service.NewFairnessService(cfg.FairnessAccrualInterval, cfg.VoteBoost)
	livenessService := service.NewLivenessService(store, cfg, logger.L())
	poolService := service.NewPoolService(store, dir, livenessService, logger.L())
	pairingService := service.NewPairingService(store, dir, lockManager, fairnessService, cfg, logger.L())
	outcomeService := service.NewOutcomeService(store, fairnessService, logger.L())

	// 분산 조정자 시작 (Redis 사용 시에만)
	if coordinator != nil {
		poolService.SetNotifier(coordinator)
		go func() {
			handler := func(event distributed.PairingEvent) error {
				if event.ParticipantID != "" {
					if _, err := pairingService.TryPair(context.Background(), event.ParticipantID); err != nil {
						return nil // ErrNoMatch 포함, 재시도는 스윕이 담당
					}
				}
				return nil
			}
			if err := coordinator.Start(context.Background(), handler); err != nil {
				logger.Error("Pairing coordinator stopped", "error", err)
			}
		}()
		defer coordinator.Stop()
		logger.Info("Pairing coordinator started")
	}

	// 백그라운드 정리 루프 시작
	reconciler := service.NewReconciler(
		pairingService,
		outcomeService,
		livenessService,
		cfg.ReconcileInterval,
		logger.L(),
	)
	reconciler.Start()
	defer reconciler.Stop()

	// 라우터 설정
	router := api.SetupRouter(cfg, &api.Services{
		Pool:         poolService,
		Pairing:      pairingService,
		Outcomes:     outcomeService,
		Liveness:     livenessService,
		RedisLimiter: redisLimiter,
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
