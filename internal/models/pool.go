package models

import "time"

// RelaxationStage 대기 시간에 따라 완화되는 선호 조건 단계
type RelaxationStage int

const (
	StageExact   RelaxationStage = 0 // 선호 조건 완전 일치
	StageWidened RelaxationStage = 1 // 나이 범위 확장, 지역 무시
	StageAny     RelaxationStage = 2 // 성별 호환만 확인 (매칭 보장 단계)
)

// WaitingPoolEntry 매칭 대상 스캔용 대기열 행. 참가자당 최대 1개.
type WaitingPoolEntry struct {
	ParticipantID string          `db:"participant_id" json:"participantId"`
	EnteredAt     time.Time       `db:"entered_at" json:"enteredAt"`
	Stage         RelaxationStage `db:"stage" json:"stage"`
	FairnessScore int             `db:"fairness_score" json:"fairnessScore"`
}

// StageFor 입장 후 경과 시간으로 현재 완화 단계 계산.
// 단계 전환은 순수하게 시간 기반이며 매칭 시도 여부와 무관하다.
func StageFor(enteredAt, now time.Time, stage1After, stage2After time.Duration) RelaxationStage {
	waited := now.Sub(enteredAt)
	switch {
	case waited >= stage2After:
		return StageAny
	case waited >= stage1After:
		return StageWidened
	default:
		return StageExact
	}
}

// PoolStats 운영용 대기열 통계
type PoolStats struct {
	Waiting        int `json:"waiting"`
	ActiveSessions int `json:"activeSessions"`
}
