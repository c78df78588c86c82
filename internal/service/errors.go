package service

import "errors"

// Pool service specific errors (호출자에게 타입화된 결과로 반환되는
// 전제조건 실패이며 치명적 에러가 아니다)
var (
	ErrOffline      = errors.New("participant is offline")
	ErrInCooldown   = errors.New("participant is in cooldown")
	ErrInvalidState = errors.New("invalid lifecycle state transition")
)

// Pairing service specific errors
var (
	// ErrNoMatch 매칭 상대 없음 또는 락 경합. 에러가 아니라 정상 흐름이며
	// 재시도는 백그라운드 루프의 주기가 담당한다.
	ErrNoMatch = errors.New("no match found")
)

// Outcome service specific errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrWindowExpired   = errors.New("vote window expired")
	ErrAlreadyVoted    = errors.New("participant already voted")
	ErrNotParticipant  = errors.New("not a session participant")
	ErrInvalidVote     = errors.New("invalid vote value")
)
