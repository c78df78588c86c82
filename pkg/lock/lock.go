package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrNotHeld     = errors.New("lock not held")
)

// Lock 획득된 단일 홀드. 페어링 시도 한 번의 수명 동안만 유지한다.
type Lock interface {
	Release(ctx context.Context) error
}

// Manager 참가자 단위 배타 홀드 관리자.
// TryAcquire는 논블로킹이며 이미 잡혀 있으면 ErrNotAcquired를 반환한다.
// 홀드는 TTL이 지나면 자동 해제되어 크래시한 호출자가 참가자를
// 영구히 잠그는 일이 없도록 한다.
type Manager interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
