package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisManager Redis 기반 분산 락 관리자
type RedisManager struct {
	client *redis.Client
}

// NewRedisManager Redis Lock Manager 생성
func NewRedisManager(client *redis.Client) *RedisManager {
	return &RedisManager{client: client}
}

// TryAcquire 분산 락 획득 시도 (SET NX, 논블로킹)
func (m *RedisManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	owner := uuid.New().String()

	success, err := m.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !success {
		return nil, ErrNotAcquired
	}

	return &redisLock{client: m.client, key: key, owner: owner}, nil
}

// TryAcquireWithRetry 재시도를 통한 락 획득
func (m *RedisManager) TryAcquireWithRetry(
	ctx context.Context,
	key string,
	ttl time.Duration,
	maxRetries int,
	retryInterval time.Duration,
) (Lock, error) {
	for i := 0; i < maxRetries; i++ {
		lock, err := m.TryAcquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if err != ErrNotAcquired {
			return nil, err
		}

		// 재시도 전 대기
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}

	return nil, ErrNotAcquired
}

type redisLock struct {
	client *redis.Client
	key    string
	owner  string
}

// Release 락 해제 (Lua 스크립트로 자신이 획득한 락만 해제)
func (l *redisLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsHeld 락이 현재 유효한지 확인
func (l *redisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == l.owner, nil
}
