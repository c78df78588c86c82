package models

import "time"

// CooldownRecord 연결 끊김 후 재입장 금지 기록
type CooldownRecord struct {
	ParticipantID string    `db:"participant_id" json:"participantId"`
	CooldownUntil time.Time `db:"cooldown_until" json:"cooldownUntil"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Expired 쿨다운 만료 여부
func (c *CooldownRecord) Expired(now time.Time) bool {
	return !now.Before(c.CooldownUntil)
}
