package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalManager 단일 인스턴스용 프로세스 내 락 관리자.
// Redis 없이 동작하는 개발 모드와 테스트에서 사용한다.
type LocalManager struct {
	mu    sync.Mutex
	holds map[string]localHold
}

type localHold struct {
	owner     string
	expiresAt time.Time
}

func NewLocalManager() *LocalManager {
	return &LocalManager{holds: make(map[string]localHold)}
}

// TryAcquire 논블로킹 홀드 획득. 만료된 홀드는 비어 있는 것으로 취급한다.
func (m *LocalManager) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if hold, ok := m.holds[key]; ok && now.Before(hold.expiresAt) {
		return nil, ErrNotAcquired
	}

	owner := uuid.New().String()
	m.holds[key] = localHold{owner: owner, expiresAt: now.Add(ttl)}

	return &localLock{manager: m, key: key, owner: owner}, nil
}

type localLock struct {
	manager *LocalManager
	key     string
	owner   string
}

// Release 자신이 획득한 홀드만 해제
func (l *localLock) Release(_ context.Context) error {
	l.manager.mu.Lock()
	defer l.manager.mu.Unlock()

	hold, ok := l.manager.holds[l.key]
	if !ok || hold.owner != l.owner {
		return ErrNotHeld
	}
	delete(l.manager.holds, l.key)
	return nil
}
