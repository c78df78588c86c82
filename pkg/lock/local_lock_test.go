package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalManager_AcquireAndRelease(t *testing.T) {
	manager := NewLocalManager()
	ctx := context.Background()

	// 홀드 획득
	hold, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, hold)

	// 동일한 키로 다시 획득 시도 (실패해야 함)
	hold2, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, hold2)

	// 해제
	err = hold.Release(ctx)
	assert.NoError(t, err)

	// 해제 후 다시 획득 가능
	hold3, err := manager.TryAcquire(ctx, "test:hold", 5*time.Second)
	assert.NoError(t, err)
	assert.NotNil(t, hold3)
	defer hold3.Release(ctx)
}

func TestLocalManager_TTLExpiry(t *testing.T) {
	manager := NewLocalManager()
	ctx := context.Background()

	hold, err := manager.TryAcquire(ctx, "test:ttl", 20*time.Millisecond)
	require.NoError(t, err)

	// TTL 경과 후에는 새 소유자가 획득할 수 있다
	time.Sleep(50 * time.Millisecond)

	hold2, err := manager.TryAcquire(ctx, "test:ttl", 5*time.Second)
	require.NoError(t, err)
	defer hold2.Release(ctx)

	// 만료된 원래 소유자의 해제는 거부된다
	err = hold.Release(ctx)
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestLocalManager_DoubleRelease(t *testing.T) {
	manager := NewLocalManager()
	ctx := context.Background()

	hold, err := manager.TryAcquire(ctx, "test:double", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, hold.Release(ctx))
	assert.ErrorIs(t, hold.Release(ctx), ErrNotHeld)
}

func TestLocalManager_IndependentKeys(t *testing.T) {
	manager := NewLocalManager()
	ctx := context.Background()

	holdA, err := manager.TryAcquire(ctx, "participant:a", 5*time.Second)
	require.NoError(t, err)
	defer holdA.Release(ctx)

	// 다른 키는 서로 간섭하지 않는다
	holdB, err := manager.TryAcquire(ctx, "participant:b", 5*time.Second)
	require.NoError(t, err)
	defer holdB.Release(ctx)
}
