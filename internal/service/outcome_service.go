package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/internal/repository"
)

// OutcomeService 세션 투표 수집과 결과 판정.
// 판정은 두 투표가 모두 도착한 순간 또는 투표 창 만료 시점에 일어난다.
type OutcomeService struct {
	store    repository.Store
	fairness *FairnessService
	logger   *zap.Logger
}

func NewOutcomeService(store repository.Store, fairness *FairnessService, logger *zap.Logger) *OutcomeService {
	return &OutcomeService{
		store:    store,
		fairness: fairness,
		logger:   logger,
	}
}

// CastVote 투표 기록. 두 표가 모두 모이면 즉시 세션을 판정하고
// 결과를 반환한다. 아직 한 표만 있으면 nil 결과를 반환한다.
func (s *OutcomeService) CastVote(ctx context.Context, sessionID, participantID string, vote models.Vote) (*models.Outcome, error) {
	if vote != models.VoteYes && vote != models.VotePass {
		return nil, ErrInvalidVote
	}

	now := time.Now()

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Member(participantID) {
		return nil, ErrNotParticipant
	}
	if sess.Status != models.SessionStatusVoting {
		return nil, ErrWindowExpired
	}
	if sess.VoteWindowEnd != nil && now.After(*sess.VoteWindowEnd) {
		return nil, ErrWindowExpired
	}
	if s.voteOf(sess, participantID) != nil {
		return nil, ErrAlreadyVoted
	}

	updated, err := s.store.RecordVote(ctx, sessionID, participantID, vote)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 사전 검사와 기록 사이에 상태가 바뀐 경우. 세션을 다시 읽어
			// 만료 판정에 밀린 것인지 중복 제출인지 가른다
			latest, readErr := s.store.GetSession(ctx, sessionID)
			if readErr == nil && latest != nil && latest.Status != models.SessionStatusVoting {
				return nil, ErrWindowExpired
			}
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	s.logger.Debug("Vote recorded",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.String("vote", string(vote)))

	if updated.VoteA == nil || updated.VoteB == nil {
		return nil, nil
	}

	outcome, err := s.resolve(ctx, updated, now)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 창 만료 판정이 먼저 끝난 경우
			return nil, ErrWindowExpired
		}
		return nil, err
	}
	return &outcome, nil
}

// ResolveExpired 투표 창이 끝난 세션을 기록된 표만으로 판정한다.
// 세션 하나의 실패가 나머지 처리를 막지 않는다.
func (s *OutcomeService) ResolveExpired(ctx context.Context) int {
	sessions, err := s.store.ListExpiredVoting(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to list expired sessions", zap.Error(err))
		return 0
	}

	resolved := 0
	for _, sess := range sessions {
		if _, err := s.resolve(ctx, &sess, time.Now()); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// 다른 경로(마지막 투표 도착 등)가 먼저 판정한 경우
				continue
			}
			s.logger.Error("Failed to resolve expired session",
				zap.String("session", sess.ID), zap.Error(err))
			continue
		}
		resolved++
	}

	return resolved
}

// Release both_yes로 끝난 세션을 명시적으로 종료하고 두 참가자를
// idle로 돌린다. 연결 수립이 끝난 뒤 호출하는 유일한 해제 경로다.
func (s *OutcomeService) Release(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return ErrSessionNotFound
	}

	if err := s.store.ReleaseSession(ctx, sessionID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidState
		}
		return fmt.Errorf("failed to release session: %w", err)
	}

	s.logger.Info("Session released",
		zap.String("session", sessionID),
		zap.String("participantA", sess.ParticipantAID),
		zap.String("participantB", sess.ParticipantBID))
	return nil
}

// resolve 결과 판정과 참가자 처분을 단일 저장소 연산으로 적용한다.
// both_yes는 참가자를 matched로 남기고, 나머지 결과는 투표에 따라
// 재입장 또는 idle 복귀로 갈린다.
func (s *OutcomeService) resolve(ctx context.Context, sess *models.Session, now time.Time) (models.Outcome, error) {
	outcome := outcomeFor(sess.VoteA, sess.VoteB)
	dispositions := s.dispositionsFor(sess, outcome)

	if err := s.store.ResolveSession(ctx, sess.ID, outcome, dispositions, now); err != nil {
		return "", err
	}

	s.logger.Info("Session resolved",
		zap.String("session", sess.ID),
		zap.String("outcome", string(outcome)))
	return outcome, nil
}

// outcomeFor 투표 조합을 결과로 사상한다. 조합은 순서에 무관하다.
func outcomeFor(voteA, voteB *models.Vote) models.Outcome {
	yes := countVotes(models.VoteYes, voteA, voteB)
	pass := countVotes(models.VotePass, voteA, voteB)

	switch {
	case yes == 2:
		return models.OutcomeBothYes
	case pass == 2:
		return models.OutcomePassPass
	case yes == 1 && pass == 1:
		return models.OutcomeYesPass
	case yes == 1:
		return models.OutcomeYesIdle
	case pass == 1:
		return models.OutcomePassIdle
	default:
		return models.OutcomeIdleIdle
	}
}

func countVotes(want models.Vote, votes ...*models.Vote) int {
	n := 0
	for _, v := range votes {
		if v != nil && *v == want {
			n++
		}
	}
	return n
}

// dispositionsFor 결과에 따른 참가자별 처분.
// yes 투표자는 부스트와 함께 재입장, pass 투표자는 부스트 없이 재입장,
// 무응답자는 idle. both_yes는 처분 없음 - 명시적 해제까지 matched 유지.
func (s *OutcomeService) dispositionsFor(sess *models.Session, outcome models.Outcome) map[string]repository.Disposition {
	dispositions := make(map[string]repository.Disposition)
	if outcome == models.OutcomeBothYes {
		return dispositions
	}

	for id, vote := range map[string]*models.Vote{
		sess.ParticipantAID: sess.VoteA,
		sess.ParticipantBID: sess.VoteB,
	} {
		switch {
		case vote == nil:
			dispositions[id] = repository.Disposition{Requeue: false}
		case *vote == models.VoteYes:
			dispositions[id] = repository.Disposition{Requeue: true, Boost: s.fairness.VoteBoost()}
		default:
			dispositions[id] = repository.Disposition{Requeue: true}
		}
	}
	return dispositions
}

func (s *OutcomeService) voteOf(sess *models.Session, participantID string) *models.Vote {
	if sess.ParticipantAID == participantID {
		return sess.VoteA
	}
	return sess.VoteB
}
