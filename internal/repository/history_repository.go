package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pairline/pairline-backend/internal/models"
)

// participantPair ANY($1) 바인딩용 정규화된 ID 쌍
func participantPair(x, y string) interface{} {
	a, b := models.CanonicalPair(x, y)
	return pq.Array([]string{a, b})
}

// HasRecentPairing 주어진 시각 이후 동일 쌍의 페어링 이력 존재 여부.
// 이력은 append-only이므로 잠금 없이 읽는다.
func (s *PostgresStore) HasRecentPairing(ctx context.Context, x, y string, since time.Time) (bool, error) {
	a, b := models.CanonicalPair(x, y)

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pairing_history
			WHERE participant_a_id = $1 AND participant_b_id = $2 AND paired_at >= $3
		)
	`, a, b, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pairing history: %w", err)
	}
	return exists, nil
}

// GetCooldown 쿨다운 기록 조회 (없으면 nil)
func (s *PostgresStore) GetCooldown(ctx context.Context, id string) (*models.CooldownRecord, error) {
	c := &models.CooldownRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT participant_id, cooldown_until, created_at
		FROM cooldowns
		WHERE participant_id = $1
	`, id).Scan(&c.ParticipantID, &c.CooldownUntil, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return c, nil
}
