package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

var (
	// ErrConflict 전제 조건이 되는 행 상태가 이미 바뀐 경우.
	// 호출자는 부분 적용 없이 전체 변경이 거부되었다고 간주한다.
	ErrConflict = errors.New("store state conflict")
)

// Disposition 세션 종료 시 참가자별 후속 처리
type Disposition struct {
	Requeue bool // true면 대기열 복귀, false면 idle
	Boost   int  // fairness 점수 가산 (Requeue일 때만 의미 있음)
}

// Store 코어가 사용하는 저장소 경계. 여러 엔티티를 건드리는 메서드는
// 단일 원자 단계로 실행되어야 한다 (페어링 확정, 결과 반영, 취소).
type Store interface {
	// Participants
	EnsureParticipant(ctx context.Context, id string, now time.Time) (*models.ParticipantState, error)
	GetParticipant(ctx context.Context, id string) (*models.ParticipantState, error)
	UpdateHeartbeat(ctx context.Context, id string, now time.Time) error

	// Waiting pool
	EnterPool(ctx context.Context, id string, now time.Time) error
	LeavePool(ctx context.Context, id string) error
	EvictFromPool(ctx context.Context, id string, now time.Time) error
	ListPool(ctx context.Context) ([]models.WaitingPoolEntry, error)
	GetPoolEntry(ctx context.Context, id string) (*models.WaitingPoolEntry, error)
	UpdateStage(ctx context.Context, id string, stage models.RelaxationStage) error

	// Sessions
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetActiveSessionFor(ctx context.Context, participantID string) (*models.Session, error)
	ListActiveSessions(ctx context.Context) ([]models.Session, error)
	ListExpiredVoting(ctx context.Context, now time.Time) ([]models.Session, error)
	CreatePairing(ctx context.Context, session *models.Session) error
	RecordVote(ctx context.Context, sessionID, participantID string, vote models.Vote) (*models.Session, error)
	ResolveSession(ctx context.Context, sessionID string, outcome models.Outcome, dispositions map[string]Disposition, now time.Time) error
	CancelSession(ctx context.Context, sessionID, disconnectedID string, cooldownUntil, now time.Time) error
	ReleaseSession(ctx context.Context, sessionID string, now time.Time) error

	// Pairing history
	HasRecentPairing(ctx context.Context, a, b string, since time.Time) (bool, error)

	// Cooldowns
	GetCooldown(ctx context.Context, id string) (*models.CooldownRecord, error)

	// Stats
	PoolStats(ctx context.Context) (*models.PoolStats, error)
}
