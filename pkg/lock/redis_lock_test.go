package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 테스트용 DB
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available:", err)
	}

	// 테스트 전 DB 초기화
	client.FlushDB(ctx)

	return client
}

func TestRedisManager_AcquireAndRelease(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	manager := NewRedisManager(client)
	ctx := context.Background()

	hold, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, hold)

	// 동일한 키로 다시 획득 시도 (실패해야 함)
	hold2, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, hold2)

	err = hold.Release(ctx)
	assert.NoError(t, err)

	hold3, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, hold3)
	defer hold3.Release(ctx)
}

func TestRedisManager_AutoExpire(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	manager := NewRedisManager(client)
	ctx := context.Background()

	hold, err := manager.TryAcquire(ctx, "test:expire", 500*time.Millisecond)
	require.NoError(t, err)

	// TTL 만료 대기
	time.Sleep(700 * time.Millisecond)

	hold2, err := manager.TryAcquire(ctx, "test:expire", 5*time.Second)
	require.NoError(t, err)
	defer hold2.Release(ctx)

	// 만료된 홀드의 해제는 거부된다
	err = hold.Release(ctx)
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestRedisManager_TryAcquireWithRetry(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	manager := NewRedisManager(client)
	ctx := context.Background()

	hold, err := manager.TryAcquire(ctx, "test:retry", 300*time.Millisecond)
	require.NoError(t, err)
	_ = hold

	// 먼저 잡힌 홀드가 만료될 때까지 재시도해서 획득한다
	hold2, err := manager.TryAcquireWithRetry(ctx, "test:retry", 5*time.Second, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, hold2)
	defer hold2.Release(ctx)
}
