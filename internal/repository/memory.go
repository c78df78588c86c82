package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

// MemoryStore Store의 인메모리 구현. 개발 모드(DATABASE_URL 미설정)와
// 테스트에서 사용한다. 모든 복합 변경은 단일 뮤텍스 아래에서 수행되어
// Postgres 트랜잭션과 같은 원자성 경계를 가진다.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[string]*models.ParticipantState
	pool         map[string]*models.WaitingPoolEntry
	sessions     map[string]*models.Session
	history      []models.PairingHistory
	cooldowns    map[string]*models.CooldownRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: make(map[string]*models.ParticipantState),
		pool:         make(map[string]*models.WaitingPoolEntry),
		sessions:     make(map[string]*models.Session),
		cooldowns:    make(map[string]*models.CooldownRecord),
	}
}

// EnsureParticipant 참가자 행 조회, 없으면 idle로 생성
func (s *MemoryStore) EnsureParticipant(_ context.Context, id string, now time.Time) (*models.ParticipantState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		p = &models.ParticipantState{
			ID:             id,
			LifecycleState: models.LifecycleIdle,
			LastHeartbeat:  now,
			UpdatedAt:      now,
		}
		s.participants[id] = p
	}
	return cloneParticipant(p), nil
}

// GetParticipant 참가자 조회 (없으면 nil)
func (s *MemoryStore) GetParticipant(_ context.Context, id string) (*models.ParticipantState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, nil
	}
	return cloneParticipant(p), nil
}

// UpdateHeartbeat 마지막 heartbeat 시각 갱신 (행이 없으면 생성)
func (s *MemoryStore) UpdateHeartbeat(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		p = &models.ParticipantState{
			ID:             id,
			LifecycleState: models.LifecycleIdle,
		}
		s.participants[id] = p
	}
	p.LastHeartbeat = now
	p.UpdatedAt = now
	return nil
}

// EnterPool waiting 전환 + 대기열 업서트 (matched면 ErrConflict)
func (s *MemoryStore) EnterPool(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return ErrConflict
	}
	if p.LifecycleState == models.LifecycleMatched {
		return ErrConflict
	}

	p.LifecycleState = models.LifecycleWaiting
	waitingSince := now
	p.WaitingSince = &waitingSince
	p.LastHeartbeat = now
	p.UpdatedAt = now

	s.pool[id] = &models.WaitingPoolEntry{
		ParticipantID: id,
		EnteredAt:     now,
		Stage:         models.StageExact,
		FairnessScore: p.FairnessScore,
	}
	return nil
}

// LeavePool 대기열 엔트리 무조건 제거 (멱등, matched는 건드리지 않음)
func (s *MemoryStore) LeavePool(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pool, id)
	if p, ok := s.participants[id]; ok && p.LifecycleState == models.LifecycleWaiting {
		p.LifecycleState = models.LifecycleIdle
		p.WaitingSince = nil
		p.UpdatedAt = time.Now()
	}
	return nil
}

// EvictFromPool liveness sweep에 의한 제거
func (s *MemoryStore) EvictFromPool(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pool, id)
	if p, ok := s.participants[id]; ok && p.LifecycleState == models.LifecycleWaiting {
		p.LifecycleState = models.LifecycleIdle
		p.WaitingSince = nil
		p.UpdatedAt = now
	}
	return nil
}

// ListPool 전체 대기열 (fairness 내림차순, 입장 시각 오름차순)
func (s *MemoryStore) ListPool(_ context.Context) ([]models.WaitingPoolEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]models.WaitingPoolEntry, 0, len(s.pool))
	for _, e := range s.pool {
		entries = append(entries, *e)
	}
	sortPoolEntries(entries)
	return entries, nil
}

// GetPoolEntry 단일 엔트리 조회 (없으면 nil)
func (s *MemoryStore) GetPoolEntry(_ context.Context, id string) (*models.WaitingPoolEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.pool[id]
	if !ok {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

// UpdateStage 저장된 완화 단계 갱신 (전진만 허용)
func (s *MemoryStore) UpdateStage(_ context.Context, id string, stage models.RelaxationStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.pool[id]; ok && e.Stage < stage {
		e.Stage = stage
	}
	return nil
}

// GetSession 세션 조회 (없으면 nil)
func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

// GetActiveSessionFor 참가자의 활성 세션 조회 (없으면 nil)
func (s *MemoryStore) GetActiveSessionFor(_ context.Context, participantID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.Active() && sess.Member(participantID) {
			return cloneSession(sess), nil
		}
	}
	return nil, nil
}

// ListActiveSessions 활성 세션 전체
func (s *MemoryStore) ListActiveSessions(_ context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Session
	for _, sess := range s.sessions {
		if sess.Active() {
			out = append(out, *cloneSession(sess))
		}
	}
	return out, nil
}

// ListExpiredVoting 투표 시간이 만료된 voting 세션
func (s *MemoryStore) ListExpiredVoting(_ context.Context, now time.Time) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Session
	for _, sess := range s.sessions {
		if sess.Status == models.SessionStatusVoting && sess.VoteWindowEnd != nil && sess.VoteWindowEnd.Before(now) {
			out = append(out, *cloneSession(sess))
		}
	}
	return out, nil
}

// CreatePairing 페어링 확정의 원자 블록
func (s *MemoryStore) CreatePairing(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, okA := s.participants[session.ParticipantAID]
	b, okB := s.participants[session.ParticipantBID]
	if !okA || !okB {
		return ErrConflict
	}
	if a.LifecycleState != models.LifecycleWaiting || b.LifecycleState != models.LifecycleWaiting {
		return ErrConflict
	}
	if _, ok := s.pool[a.ID]; !ok {
		return ErrConflict
	}
	if _, ok := s.pool[b.ID]; !ok {
		return ErrConflict
	}

	delete(s.pool, a.ID)
	delete(s.pool, b.ID)

	s.sessions[session.ID] = cloneSession(session)

	for _, m := range []struct {
		p       *models.ParticipantState
		partner string
	}{{a, b.ID}, {b, a.ID}} {
		sessionID := session.ID
		partnerID := m.partner
		m.p.LifecycleState = models.LifecycleMatched
		m.p.SessionID = &sessionID
		m.p.PartnerID = &partnerID
		m.p.WaitingSince = nil
		m.p.UpdatedAt = session.CreatedAt
	}

	s.history = append(s.history, models.PairingHistory{
		ParticipantAID: session.ParticipantAID,
		ParticipantBID: session.ParticipantBID,
		SessionID:      session.ID,
		PairedAt:       session.CreatedAt,
	})
	return nil
}

// RecordVote 투표 슬롯 기록 (슬롯 중복/상태 불일치는 ErrConflict)
func (s *MemoryStore) RecordVote(_ context.Context, sessionID, participantID string, vote models.Vote) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Status != models.SessionStatusVoting || !sess.Member(participantID) {
		return nil, ErrConflict
	}

	v := vote
	if participantID == sess.ParticipantAID {
		if sess.VoteA != nil {
			return nil, ErrConflict
		}
		sess.VoteA = &v
	} else {
		if sess.VoteB != nil {
			return nil, ErrConflict
		}
		sess.VoteB = &v
	}
	return cloneSession(sess), nil
}

// ResolveSession 종료 처리 + 참가자 후속 상태 반영
func (s *MemoryStore) ResolveSession(_ context.Context, sessionID string, outcome models.Outcome, dispositions map[string]Disposition, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Status != models.SessionStatusVoting {
		return ErrConflict
	}

	o := outcome
	resolvedAt := now
	sess.Status = models.SessionStatusResolved
	sess.Outcome = &o
	sess.ResolvedAt = &resolvedAt

	for id, disp := range dispositions {
		p, ok := s.participants[id]
		if !ok {
			continue
		}
		p.SessionID = nil
		p.PartnerID = nil
		p.UpdatedAt = now

		if !disp.Requeue {
			p.LifecycleState = models.LifecycleIdle
			p.WaitingSince = nil
			continue
		}

		p.LifecycleState = models.LifecycleWaiting
		waitingSince := now
		p.WaitingSince = &waitingSince
		p.FairnessScore += disp.Boost
		s.pool[id] = &models.WaitingPoolEntry{
			ParticipantID: id,
			EnteredAt:     now,
			Stage:         models.StageExact,
			FairnessScore: p.FairnessScore,
		}
	}
	return nil
}

// CancelSession 연결 끊김에 의한 취소 + 쿨다운 기록
func (s *MemoryStore) CancelSession(_ context.Context, sessionID, disconnectedID string, cooldownUntil, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Active() {
		return ErrConflict
	}

	resolvedAt := now
	sess.Status = models.SessionStatusCancelled
	sess.ResolvedAt = &resolvedAt

	for _, id := range []string{sess.ParticipantAID, sess.ParticipantBID} {
		if p, ok := s.participants[id]; ok {
			p.LifecycleState = models.LifecycleIdle
			p.SessionID = nil
			p.PartnerID = nil
			p.WaitingSince = nil
			p.UpdatedAt = now
		}
	}

	s.cooldowns[disconnectedID] = &models.CooldownRecord{
		ParticipantID: disconnectedID,
		CooldownUntil: cooldownUntil,
		CreatedAt:     now,
	}
	return nil
}

// ReleaseSession both_yes 핸드오프 이후 idle 복귀
func (s *MemoryStore) ReleaseSession(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Status != models.SessionStatusResolved || sess.Outcome == nil || *sess.Outcome != models.OutcomeBothYes {
		return ErrConflict
	}

	for _, id := range []string{sess.ParticipantAID, sess.ParticipantBID} {
		p, ok := s.participants[id]
		if !ok || p.SessionID == nil || *p.SessionID != sessionID {
			continue
		}
		p.LifecycleState = models.LifecycleIdle
		p.SessionID = nil
		p.PartnerID = nil
		p.WaitingSince = nil
		p.UpdatedAt = now
	}
	return nil
}

// HasRecentPairing 주어진 시각 이후 동일 쌍 이력 존재 여부
func (s *MemoryStore) HasRecentPairing(_ context.Context, x, y string, since time.Time) (bool, error) {
	a, b := models.CanonicalPair(x, y)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.history {
		ha, hb := models.CanonicalPair(h.ParticipantAID, h.ParticipantBID)
		if ha == a && hb == b && !h.PairedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// GetCooldown 쿨다운 기록 조회 (없으면 nil)
func (s *MemoryStore) GetCooldown(_ context.Context, id string) (*models.CooldownRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cooldowns[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

// PoolStats 대기열/활성 세션 통계
func (s *MemoryStore) PoolStats(_ context.Context) (*models.PoolStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, sess := range s.sessions {
		if sess.Active() {
			active++
		}
	}
	return &models.PoolStats{Waiting: len(s.pool), ActiveSessions: active}, nil
}

// sortPoolEntries fairness 내림차순, 동점이면 오래 기다린 쪽 우선
func sortPoolEntries(entries []models.WaitingPoolEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FairnessScore != entries[j].FairnessScore {
			return entries[i].FairnessScore > entries[j].FairnessScore
		}
		return entries[i].EnteredAt.Before(entries[j].EnteredAt)
	})
}

func cloneParticipant(p *models.ParticipantState) *models.ParticipantState {
	clone := *p
	if p.SessionID != nil {
		v := *p.SessionID
		clone.SessionID = &v
	}
	if p.PartnerID != nil {
		v := *p.PartnerID
		clone.PartnerID = &v
	}
	if p.WaitingSince != nil {
		v := *p.WaitingSince
		clone.WaitingSince = &v
	}
	return &clone
}

func cloneSession(sess *models.Session) *models.Session {
	clone := *sess
	if sess.VoteWindowStart != nil {
		v := *sess.VoteWindowStart
		clone.VoteWindowStart = &v
	}
	if sess.VoteWindowEnd != nil {
		v := *sess.VoteWindowEnd
		clone.VoteWindowEnd = &v
	}
	if sess.VoteA != nil {
		v := *sess.VoteA
		clone.VoteA = &v
	}
	if sess.VoteB != nil {
		v := *sess.VoteB
		clone.VoteB = &v
	}
	if sess.Outcome != nil {
		v := *sess.Outcome
		clone.Outcome = &v
	}
	if sess.ResolvedAt != nil {
		v := *sess.ResolvedAt
		clone.ResolvedAt = &v
	}
	return &clone
}
