package models

import "time"

type LifecycleState string

const (
	LifecycleIdle    LifecycleState = "idle"
	LifecycleWaiting LifecycleState = "waiting"
	LifecycleMatched LifecycleState = "matched"
)

// Valid 닫힌 상태 집합 검증 (그 외 값은 불변식 위반)
func (s LifecycleState) Valid() bool {
	switch s {
	case LifecycleIdle, LifecycleWaiting, LifecycleMatched:
		return true
	}
	return false
}

// ParticipantState 코어가 단독 소유하는 참가자 행.
// SessionID와 PartnerID는 둘 다 nil이거나 둘 다 설정되어야 한다.
type ParticipantState struct {
	ID             string         `db:"id" json:"id"`
	LifecycleState LifecycleState `db:"lifecycle_state" json:"lifecycleState"`
	SessionID      *string        `db:"session_id" json:"sessionId,omitempty"`
	PartnerID      *string        `db:"partner_id" json:"partnerId,omitempty"`
	WaitingSince   *time.Time     `db:"waiting_since" json:"waitingSince,omitempty"`
	FairnessScore  int            `db:"fairness_score" json:"fairnessScore"`
	LastHeartbeat  time.Time      `db:"last_heartbeat" json:"lastHeartbeat"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// StatusView getStatus 응답용 읽기 전용 프로젝션
type StatusView struct {
	ParticipantID  string         `json:"participantId"`
	LifecycleState LifecycleState `json:"lifecycleState"`
	SessionID      *string        `json:"sessionId,omitempty"`
	PartnerID      *string        `json:"partnerId,omitempty"`
	VoteWindowEnd  *time.Time     `json:"voteWindowEnd,omitempty"`
}
