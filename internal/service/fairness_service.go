package service

import "time"

// FairnessService computes partner-selection priority scores.
// The exact curve is tunable policy; the load-bearing properties are that
// the score never decreases while a participant keeps waiting, and that a
// decisive yes vote strictly increases the carried score.
type FairnessService struct {
	accrualInterval time.Duration // score +1 per interval spent waiting
	voteBoost       int           // reward for a decisive yes vote
}

// NewFairnessService fairness 점수 서비스 생성
func NewFairnessService(accrualInterval time.Duration, voteBoost int) *FairnessService {
	if accrualInterval <= 0 {
		accrualInterval = 10 * time.Second
	}
	return &FairnessService{
		accrualInterval: accrualInterval,
		voteBoost:       voteBoost,
	}
}

// AccruedScore returns the effective score of a waiting participant:
// the carried score plus time-based accrual since pool entry.
// Monotonically non-decreasing in now for a fixed entry.
func (s *FairnessService) AccruedScore(carried int, enteredAt, now time.Time) int {
	waited := now.Sub(enteredAt)
	if waited <= 0 {
		return carried
	}
	return carried + int(waited/s.accrualInterval)
}

// VoteBoost returns the carried-score increment for a yes vote whose
// partner passed or never answered.
func (s *FairnessService) VoteBoost() int {
	return s.voteBoost
}
