package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/internal/config"
	"github.com/pairline/pairline-backend/internal/directory"
	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/internal/repository"
	"github.com/pairline/pairline-backend/pkg/lock"
)

type PairingService struct {
	store    repository.Store
	dir      directory.Directory
	locks    lock.Manager
	fairness *FairnessService
	cfg      *config.Config
	logger   *zap.Logger
}

func NewPairingService(
	store repository.Store,
	dir directory.Directory,
	locks lock.Manager,
	fairness *FairnessService,
	cfg *config.Config,
	logger *zap.Logger,
) *PairingService {
	return &PairingService{
		store:    store,
		dir:      dir,
		locks:    locks,
		fairness: fairness,
		cfg:      cfg,
		logger:   logger,
	}
}

// candidate 호환성 검사를 통과한 상대와 랭킹용 점수
type candidate struct {
	entry   models.WaitingPoolEntry
	accrued int
}

// TryPair 요청 참가자에 대한 단일 페어링 시도.
// 성공 시 세션 ID, 그 외에는 ErrNoMatch를 반환한다.
// 락 획득 실패는 에러가 아니라 "다른 시도가 진행 중"이라는 뜻이다.
func (s *PairingService) TryPair(ctx context.Context, participantID string) (string, error) {
	hold, err := s.locks.TryAcquire(ctx, lockKey(participantID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return "", ErrNoMatch
		}
		return "", fmt.Errorf("failed to acquire hold: %w", err)
	}
	defer s.release(hold, participantID)

	now := time.Now()

	// 홀드 획득 후 재검증 - 행이 남아 있어도 오래된 후보는 제외한다
	entry, ok, err := s.validWaitingCandidate(ctx, participantID, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoMatch
	}

	profile, err := s.dir.GetProfile(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("failed to read requester profile: %w", err)
	}

	// 단계 전진은 시간 기반이므로 여기서는 파생 단계로만 스캔한다
	stage := models.StageFor(entry.EnteredAt, now, s.cfg.Stage1After, s.cfg.Stage2After)

	ranked, err := s.rankCandidates(ctx, participantID, profile, stage, now)
	if err != nil {
		return "", err
	}

	for _, cand := range ranked {
		sessionID, claimed, err := s.claimPair(ctx, participantID, cand.entry.ParticipantID, now)
		if err != nil {
			return "", err
		}
		if claimed {
			return sessionID, nil
		}
		// 후보를 잡지 못했으면 다음 순위로 넘어간다
	}

	return "", ErrNoMatch
}

// rankCandidates 호환 후보를 fairness 내림차순, 입장 시각 오름차순으로
// 정렬해 반환한다. 오래 기다렸거나 부스트를 쌓은 참가자가 우선이다.
func (s *PairingService) rankCandidates(
	ctx context.Context,
	requesterID string,
	requesterProfile *directory.Profile,
	stage models.RelaxationStage,
	now time.Time,
) ([]candidate, error) {
	entries, err := s.store.ListPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool: %w", err)
	}

	historySince := now.Add(-s.cfg.RepairBlockWindow)
	var ranked []candidate

	for _, e := range entries {
		if e.ParticipantID == requesterID {
			continue
		}

		_, ok, err := s.validWaitingCandidate(ctx, e.ParticipantID, now)
		if err != nil {
			s.logger.Warn("Skipping candidate on store error",
				zap.String("candidate", e.ParticipantID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		candProfile, err := s.dir.GetProfile(ctx, e.ParticipantID)
		if err != nil {
			s.logger.Warn("Skipping candidate on directory error",
				zap.String("candidate", e.ParticipantID), zap.Error(err))
			continue
		}

		if !compatibleAt(stage, requesterProfile, candProfile, s.cfg.Stage1AgeWiden) {
			continue
		}

		paired, err := s.store.HasRecentPairing(ctx, requesterID, e.ParticipantID, historySince)
		if err != nil {
			return nil, fmt.Errorf("failed to check pairing history: %w", err)
		}
		if paired {
			continue
		}

		ranked = append(ranked, candidate{
			entry:   e,
			accrued: s.fairness.AccruedScore(e.FairnessScore, e.EnteredAt, now),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].accrued != ranked[j].accrued {
			return ranked[i].accrued > ranked[j].accrued
		}
		return ranked[i].entry.EnteredAt.Before(ranked[j].entry.EnteredAt)
	})

	return ranked, nil
}

// claimPair 후보 홀드 획득 후 원자적 세션 생성.
// claimed=false는 이 후보를 건너뛰고 다음 순위를 시도하라는 뜻이다.
func (s *PairingService) claimPair(ctx context.Context, requesterID, candidateID string, now time.Time) (string, bool, error) {
	candHold, err := s.locks.TryAcquire(ctx, lockKey(candidateID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to acquire candidate hold: %w", err)
	}
	defer s.release(candHold, candidateID)

	// 두 홀드를 모두 잡은 뒤의 재확인 - 랭킹 동안 시간이 흘렀으므로
	// 이 단계가 찢어진 페어링을 막는 유일한 순서 보장이다
	if _, ok, err := s.validWaitingCandidate(ctx, requesterID, now); err != nil || !ok {
		return "", false, err
	}
	if _, ok, err := s.validWaitingCandidate(ctx, candidateID, now); err != nil || !ok {
		return "", false, err
	}

	a, b := models.CanonicalPair(requesterID, candidateID)
	windowStart := now
	windowEnd := now.Add(s.cfg.VoteWindow)
	session := &models.Session{
		ID:              uuid.New().String(),
		ParticipantAID:  a,
		ParticipantBID:  b,
		Status:          models.SessionStatusVoting,
		VoteWindowStart: &windowStart,
		VoteWindowEnd:   &windowEnd,
		CreatedAt:       now,
	}

	if err := s.store.CreatePairing(ctx, session); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 저장소가 마지막 줄에서 거부 - 부분 적용 없음
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to create pairing: %w", err)
	}

	s.logger.Info("Session created",
		zap.String("session", session.ID),
		zap.String("participantA", a),
		zap.String("participantB", b),
		zap.Time("voteWindowEnd", windowEnd))

	return session.ID, true, nil
}

// validWaitingCandidate waiting 상태이고 최근 활동이 있는지 확인.
// heartbeat 공백이 기준을 넘어도 방금 입장했다면 유효하다.
func (s *PairingService) validWaitingCandidate(ctx context.Context, participantID string, now time.Time) (*models.WaitingPoolEntry, bool, error) {
	entry, err := s.store.GetPoolEntry(ctx, participantID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pool entry: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get participant: %w", err)
	}
	if p == nil || p.LifecycleState != models.LifecycleWaiting {
		return nil, false, nil
	}

	fresh := now.Sub(p.LastHeartbeat) <= s.cfg.StaleAfter ||
		now.Sub(entry.EnteredAt) <= s.cfg.StaleAfter
	if !fresh {
		return nil, false, nil
	}

	return entry, true, nil
}

// SweepOnce 전체 대기열에 대한 기회적 페어링 1회.
// 개별 참가자 실패는 스윕 전체를 멈추지 않는다.
func (s *PairingService) SweepOnce(ctx context.Context) int {
	entries, err := s.store.ListPool(ctx)
	if err != nil {
		s.logger.Error("Failed to list pool for sweep", zap.Error(err))
		return 0
	}

	paired := 0
	for _, e := range entries {
		// 같은 스윕에서 이미 매칭됐으면 건너뛴다
		entry, err := s.store.GetPoolEntry(ctx, e.ParticipantID)
		if err != nil || entry == nil {
			continue
		}

		_, err = s.TryPair(ctx, e.ParticipantID)
		if err == nil {
			paired++
			continue
		}
		if !errors.Is(err, ErrNoMatch) {
			s.logger.Error("Pairing attempt failed",
				zap.String("participant", e.ParticipantID), zap.Error(err))
		}
	}

	return paired
}

// AdvanceStages 저장된 완화 단계를 경과 시간에 맞춰 전진시킨다
func (s *PairingService) AdvanceStages(ctx context.Context) int {
	entries, err := s.store.ListPool(ctx)
	if err != nil {
		s.logger.Error("Failed to list pool for stage advance", zap.Error(err))
		return 0
	}

	now := time.Now()
	advanced := 0
	for _, e := range entries {
		derived := models.StageFor(e.EnteredAt, now, s.cfg.Stage1After, s.cfg.Stage2After)
		if derived <= e.Stage {
			continue
		}
		if err := s.store.UpdateStage(ctx, e.ParticipantID, derived); err != nil {
			s.logger.Error("Failed to advance stage",
				zap.String("participant", e.ParticipantID), zap.Error(err))
			continue
		}
		advanced++
	}

	return advanced
}

func (s *PairingService) release(hold lock.Lock, participantID string) {
	if err := hold.Release(context.Background()); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		s.logger.Warn("Failed to release hold",
			zap.String("participant", participantID), zap.Error(err))
	}
}

func lockKey(participantID string) string {
	return "pairing:hold:" + participantID
}
