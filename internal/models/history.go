package models

import "time"

// PairingHistory 페어링 이력 (append-only, 정규화된 쌍 기준).
// 동일 쌍의 즉시 재매칭을 막는 데 사용한다.
type PairingHistory struct {
	ID             string    `db:"id" json:"id"`
	ParticipantAID string    `db:"participant_a_id" json:"participantAId"`
	ParticipantBID string    `db:"participant_b_id" json:"participantBId"`
	SessionID      string    `db:"session_id" json:"sessionId"`
	PairedAt       time.Time `db:"paired_at" json:"pairedAt"`
}
