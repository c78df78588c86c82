package models

import "time"

type SessionStatus string

const (
	SessionStatusPaired    SessionStatus = "paired"
	SessionStatusVoting    SessionStatus = "voting"
	SessionStatusResolved  SessionStatus = "resolved"
	SessionStatusCancelled SessionStatus = "cancelled"
)

type Vote string

const (
	VoteYes  Vote = "yes"
	VotePass Vote = "pass"
)

// Outcome 투표 결과 조합에 따른 세션 종료 유형
type Outcome string

const (
	OutcomeIdleIdle Outcome = "idle_idle" // 둘 다 무응답
	OutcomePassIdle Outcome = "pass_idle" // 한쪽 pass, 한쪽 무응답
	OutcomeYesIdle  Outcome = "yes_idle"  // 한쪽 yes, 한쪽 무응답
	OutcomeBothYes  Outcome = "both_yes"  // 상호 수락 - 세션 핸드오프
	OutcomeYesPass  Outcome = "yes_pass"  // yes와 pass
	OutcomePassPass Outcome = "pass_pass" // 둘 다 pass
)

// Session 페어링된 2인 세션. A/B는 ID 사전순으로 정규화되어
// 중복 검사와 이력 조회가 순서와 무관하게 동작한다.
type Session struct {
	ID              string        `db:"id" json:"id"`
	ParticipantAID  string        `db:"participant_a_id" json:"participantAId"`
	ParticipantBID  string        `db:"participant_b_id" json:"participantBId"`
	Status          SessionStatus `db:"status" json:"status"`
	VoteWindowStart *time.Time    `db:"vote_window_start" json:"voteWindowStart,omitempty"`
	VoteWindowEnd   *time.Time    `db:"vote_window_end" json:"voteWindowEnd,omitempty"`
	VoteA           *Vote         `db:"vote_a" json:"voteA,omitempty"`
	VoteB           *Vote         `db:"vote_b" json:"voteB,omitempty"`
	Outcome         *Outcome      `db:"outcome" json:"outcome,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	ResolvedAt      *time.Time    `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// Active paired/voting 상태 여부
func (s *Session) Active() bool {
	return s.Status == SessionStatusPaired || s.Status == SessionStatusVoting
}

// Member 세션 참가자 여부
func (s *Session) Member(participantID string) bool {
	return s.ParticipantAID == participantID || s.ParticipantBID == participantID
}

// PartnerOf 상대 참가자 ID. 참가자가 아니면 빈 문자열.
func (s *Session) PartnerOf(participantID string) string {
	switch participantID {
	case s.ParticipantAID:
		return s.ParticipantBID
	case s.ParticipantBID:
		return s.ParticipantAID
	}
	return ""
}

// CanonicalPair 사전순으로 정규화된 참가자 쌍
func CanonicalPair(x, y string) (a, b string) {
	if x < y {
		return x, y
	}
	return y, x
}
