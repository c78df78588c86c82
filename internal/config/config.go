package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database (비어 있으면 인메모리 스토어 사용)
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Redis (비어 있으면 단일 인스턴스 모드)
	RedisURL string

	// CORS
	CORSAllowedOrigins []string

	// Directory (참가자 프로필 서비스)
	DirectoryURL string

	// Pairing
	ReconcileInterval time.Duration // 백그라운드 루프 주기
	VoteWindow        time.Duration // 투표 제한 시간
	Stage1After       time.Duration // 1단계 조건 완화까지 대기 시간
	Stage2After       time.Duration // 2단계(최대) 조건 완화까지 대기 시간
	Stage1AgeWiden    int           // 1단계에서 나이 범위 확장 폭 (년)
	RepairBlockWindow time.Duration // 동일 페어 재매칭 금지 기간
	LockTTL           time.Duration // 참가자 락 TTL

	// Fairness
	FairnessAccrualInterval time.Duration // 대기 중 점수 적립 주기
	VoteBoost               int           // yes 투표 보상 점수

	// Liveness
	StaleAfter       time.Duration // 대기열에서 제거되는 heartbeat 공백
	DisconnectAfter  time.Duration // 세션 중 연결 끊김으로 판정되는 heartbeat 공백
	CooldownDuration time.Duration // 연결 끊김 후 재입장 금지 시간

	// Rate limiting
	HeartbeatRateLimit int // 분당 heartbeat 최대 횟수
	PoolEnterRateLimit int // 분당 입장 시도 최대 횟수
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    parseInt(getEnv("DB_MAX_OPEN_CONNS", "25"), 25),
		DBMaxIdleConns:    parseInt(getEnv("DB_MAX_IDLE_CONNS", "5"), 5),
		DBConnMaxLifetime: parseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"), 5*time.Minute),
		RedisURL:     getEnv("REDIS_URL", ""),
		DirectoryURL: getEnv("DIRECTORY_URL", ""),

		ReconcileInterval: parseDuration(getEnv("RECONCILE_INTERVAL", "5s"), 5*time.Second),
		VoteWindow:        parseDuration(getEnv("VOTE_WINDOW", "60s"), 60*time.Second),
		Stage1After:       parseDuration(getEnv("STAGE1_AFTER", "30s"), 30*time.Second),
		Stage2After:       parseDuration(getEnv("STAGE2_AFTER", "90s"), 90*time.Second),
		Stage1AgeWiden:    parseInt(getEnv("STAGE1_AGE_WIDEN", "5"), 5),
		RepairBlockWindow: parseDuration(getEnv("REPAIR_BLOCK_WINDOW", "24h"), 24*time.Hour),
		LockTTL:           parseDuration(getEnv("LOCK_TTL", "5s"), 5*time.Second),

		FairnessAccrualInterval: parseDuration(getEnv("FAIRNESS_ACCRUAL_INTERVAL", "10s"), 10*time.Second),
		VoteBoost:               parseInt(getEnv("VOTE_BOOST", "10"), 10),

		StaleAfter:       parseDuration(getEnv("STALE_AFTER", "45s"), 45*time.Second),
		DisconnectAfter:  parseDuration(getEnv("DISCONNECT_AFTER", "30s"), 30*time.Second),
		CooldownDuration: parseDuration(getEnv("COOLDOWN_DURATION", "5m"), 5*time.Minute),

		HeartbeatRateLimit: parseInt(getEnv("HEARTBEAT_RATE_LIMIT", "120"), 120),
		PoolEnterRateLimit: parseInt(getEnv("POOL_ENTER_RATE_LIMIT", "30"), 30),

		CORSAllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseInt(s string, defaultValue int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}
