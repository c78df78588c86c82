package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/internal/config"
	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/internal/repository"
)

type LivenessService struct {
	store  repository.Store
	cfg    *config.Config
	logger *zap.Logger
}

func NewLivenessService(store repository.Store, cfg *config.Config, logger *zap.Logger) *LivenessService {
	return &LivenessService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Heartbeat 참가자 생존 신호 기록. 미등록 참가자는 등록부터 한다.
func (s *LivenessService) Heartbeat(ctx context.Context, participantID string) error {
	now := time.Now()
	if _, err := s.store.EnsureParticipant(ctx, participantID, now); err != nil {
		return fmt.Errorf("failed to ensure participant: %w", err)
	}
	if err := s.store.UpdateHeartbeat(ctx, participantID, now); err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	return nil
}

// IsInCooldown 쿨다운 중인지 확인. 만료된 레코드는 없는 것으로 본다.
func (s *LivenessService) IsInCooldown(ctx context.Context, participantID string, now time.Time) (bool, error) {
	cd, err := s.store.GetCooldown(ctx, participantID)
	if err != nil {
		return false, fmt.Errorf("failed to get cooldown: %w", err)
	}
	if cd == nil || cd.Expired(now) {
		return false, nil
	}
	return true, nil
}

// SweepStalePool heartbeat이 끊긴 waiting 참가자를 대기열에서 제거한다.
// matched 참가자는 세션 경로(disconnect 스윕)가 담당하므로 건드리지 않는다.
func (s *LivenessService) SweepStalePool(ctx context.Context) int {
	entries, err := s.store.ListPool(ctx)
	if err != nil {
		s.logger.Error("Failed to list pool for stale sweep", zap.Error(err))
		return 0
	}

	now := time.Now()
	evicted := 0
	for _, e := range entries {
		p, err := s.store.GetParticipant(ctx, e.ParticipantID)
		if err != nil {
			s.logger.Error("Failed to load participant during stale sweep",
				zap.String("participant", e.ParticipantID), zap.Error(err))
			continue
		}
		if p == nil {
			// 엔트리만 남은 고아 행 - 제거
			s.evict(ctx, e.ParticipantID, now, &evicted)
			continue
		}

		switch p.LifecycleState {
		case models.LifecycleMatched:
			continue
		case models.LifecycleIdle:
			// idle인데 대기열 엔트리가 남아 있으면 불변식 위반 - 복구하고 기록
			s.logger.Warn("Idle participant found in pool, evicting",
				zap.String("participant", e.ParticipantID))
			s.evict(ctx, e.ParticipantID, now, &evicted)
			continue
		}

		fresh := now.Sub(p.LastHeartbeat) <= s.cfg.StaleAfter ||
			now.Sub(e.EnteredAt) <= s.cfg.StaleAfter
		if fresh {
			continue
		}

		s.logger.Info("Evicting stale participant from pool",
			zap.String("participant", e.ParticipantID),
			zap.Time("lastHeartbeat", p.LastHeartbeat))
		s.evict(ctx, e.ParticipantID, now, &evicted)
	}

	return evicted
}

func (s *LivenessService) evict(ctx context.Context, participantID string, now time.Time, counter *int) {
	if err := s.store.EvictFromPool(ctx, participantID, now); err != nil {
		s.logger.Error("Failed to evict from pool",
			zap.String("participant", participantID), zap.Error(err))
		return
	}
	*counter++
}

// SweepDisconnected 활성 세션 참가자 중 heartbeat이 끊긴 쪽을 찾아
// 세션을 취소하고 해당 참가자에게 쿨다운을 부여한다. 남은 쪽은 idle로
// 돌아가 스스로 재입장할 수 있다.
func (s *LivenessService) SweepDisconnected(ctx context.Context) int {
	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to list active sessions", zap.Error(err))
		return 0
	}

	now := time.Now()
	cancelled := 0
	for _, sess := range sessions {
		disconnected := s.findDisconnected(ctx, &sess, now)
		if disconnected == "" {
			continue
		}
		if err := s.ApplyCooldown(ctx, sess.ID, disconnected, now); err != nil {
			s.logger.Error("Failed to cancel session for disconnect",
				zap.String("session", sess.ID),
				zap.String("participant", disconnected), zap.Error(err))
			continue
		}
		s.logger.Info("Session cancelled: participant disconnected",
			zap.String("session", sess.ID),
			zap.String("participant", disconnected))
		cancelled++
	}

	return cancelled
}

// findDisconnected 세션 양쪽 중 끊긴 참가자 ID를 반환 (없으면 빈 문자열)
func (s *LivenessService) findDisconnected(ctx context.Context, sess *models.Session, now time.Time) string {
	for _, id := range []string{sess.ParticipantAID, sess.ParticipantBID} {
		p, err := s.store.GetParticipant(ctx, id)
		if err != nil {
			s.logger.Error("Failed to load session participant",
				zap.String("participant", id), zap.Error(err))
			continue
		}
		if p == nil {
			return id
		}
		if now.Sub(p.LastHeartbeat) > s.cfg.DisconnectAfter {
			return id
		}
	}
	return ""
}

// ApplyCooldown 세션 취소 + 이탈자 쿨다운을 단일 저장소 연산으로 적용
func (s *LivenessService) ApplyCooldown(ctx context.Context, sessionID, participantID string, now time.Time) error {
	until := now.Add(s.cfg.CooldownDuration)
	if err := s.store.CancelSession(ctx, sessionID, participantID, until, now); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}
	return nil
}
