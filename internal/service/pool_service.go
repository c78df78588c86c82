package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/internal/directory"
	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/internal/repository"
)

// PairingNotifier 다른 인스턴스에 대기열 변경을 알리는 선택적 훅
// (단일 인스턴스 모드에서는 nil)
type PairingNotifier interface {
	NotifyParticipantEnqueued(ctx context.Context, participantID string) error
}

type PoolService struct {
	store    repository.Store
	dir      directory.Directory
	liveness *LivenessService
	notifier PairingNotifier
	logger   *zap.Logger
}

func NewPoolService(
	store repository.Store,
	dir directory.Directory,
	liveness *LivenessService,
	logger *zap.Logger,
) *PoolService {
	return &PoolService{
		store:    store,
		dir:      dir,
		liveness: liveness,
		logger:   logger,
	}
}

// SetNotifier 분산 조정자 연결 (선택적, 순환 의존 회피용 세터)
func (s *PoolService) SetNotifier(notifier PairingNotifier) {
	s.notifier = notifier
}

// Enter 대기열 입장.
// 이미 matched인 참가자의 입장 요청은 heartbeat 갱신 외에 아무것도
// 바꾸지 않는다 - 늦게 도착한 오래된 클라이언트의 재입장 요청이
// 살아 있는 세션을 밀어내서는 안 된다.
func (s *PoolService) Enter(ctx context.Context, participantID string) error {
	now := time.Now()

	profile, err := s.dir.GetProfile(ctx, participantID)
	if err != nil {
		if errors.Is(err, directory.ErrProfileNotFound) {
			return ErrOffline
		}
		return fmt.Errorf("failed to read directory: %w", err)
	}
	if !profile.Online {
		return ErrOffline
	}

	p, err := s.store.EnsureParticipant(ctx, participantID, now)
	if err != nil {
		return fmt.Errorf("failed to ensure participant: %w", err)
	}

	// 입장 시도는 결과와 무관하게 생존 신호로 취급한다
	if err := s.store.UpdateHeartbeat(ctx, participantID, now); err != nil {
		return fmt.Errorf("failed to refresh heartbeat: %w", err)
	}

	inCooldown, err := s.liveness.IsInCooldown(ctx, participantID, now)
	if err != nil {
		return err
	}
	if inCooldown {
		return ErrInCooldown
	}

	// 상태가 뒤처졌을 수 있으므로 활성 세션 존재도 방어적으로 확인한다
	if p.LifecycleState == models.LifecycleMatched {
		return ErrInvalidState
	}
	active, err := s.store.GetActiveSessionFor(ctx, participantID)
	if err != nil {
		return fmt.Errorf("failed to check active session: %w", err)
	}
	if active != nil {
		s.logger.Warn("Enter pool refused: active session exists",
			zap.String("participant", participantID),
			zap.String("session", active.ID))
		return ErrInvalidState
	}

	if err := s.store.EnterPool(ctx, participantID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidState
		}
		return fmt.Errorf("failed to enter pool: %w", err)
	}

	s.logger.Debug("Participant entered pool", zap.String("participant", participantID))

	if s.notifier != nil {
		if err := s.notifier.NotifyParticipantEnqueued(ctx, participantID); err != nil {
			s.logger.Warn("Failed to notify enqueue", zap.Error(err))
		}
	}

	return nil
}

// Leave 대기열 퇴장 (멱등)
func (s *PoolService) Leave(ctx context.Context, participantID string) error {
	if err := s.store.LeavePool(ctx, participantID); err != nil {
		return fmt.Errorf("failed to leave pool: %w", err)
	}
	return nil
}

// Status getStatus 읽기 전용 프로젝션. 미등록 참가자는 idle로 보인다.
func (s *PoolService) Status(ctx context.Context, participantID string) (*models.StatusView, error) {
	view := &models.StatusView{
		ParticipantID:  participantID,
		LifecycleState: models.LifecycleIdle,
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil {
		return view, nil
	}

	view.LifecycleState = p.LifecycleState
	view.SessionID = p.SessionID
	view.PartnerID = p.PartnerID

	if p.SessionID != nil {
		sess, err := s.store.GetSession(ctx, *p.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if sess != nil {
			view.VoteWindowEnd = sess.VoteWindowEnd
		}
	}

	return view, nil
}

// Stats 운영용 대기열 통계
func (s *PoolService) Stats(ctx context.Context) (*models.PoolStats, error) {
	return s.store.PoolStats(ctx)
}
