package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

// EnterPool waiting 전환과 대기열 업서트를 한 트랜잭션으로 수행.
// matched 참가자에 대해서는 ErrConflict를 반환하고 아무것도 바꾸지 않는다.
func (s *PostgresStore) EnterPool(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var state models.LifecycleState
		var score int
		err := tx.QueryRowContext(ctx,
			`SELECT lifecycle_state, fairness_score FROM participants WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&state, &score)
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to lock participant: %w", err)
		}

		if state == models.LifecycleMatched {
			return ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE participants
			SET lifecycle_state = 'waiting', waiting_since = $2, last_heartbeat = $2, updated_at = $2
			WHERE id = $1
		`, id, now); err != nil {
			return fmt.Errorf("failed to mark waiting: %w", err)
		}

		// 재입장 시 entered_at은 현재 시각으로, fairness는 기존 값을 그대로 가져온다
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO waiting_pool (participant_id, entered_at, stage, fairness_score)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (participant_id)
			DO UPDATE SET entered_at = EXCLUDED.entered_at, stage = 0, fairness_score = EXCLUDED.fairness_score
		`, id, now, score); err != nil {
			return fmt.Errorf("failed to upsert pool entry: %w", err)
		}

		return nil
	})
}

// LeavePool 대기열 엔트리 무조건 제거 (멱등)
func (s *PostgresStore) LeavePool(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM waiting_pool WHERE participant_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to delete pool entry: %w", err)
		}

		// matched 참가자는 건드리지 않는다
		if _, err := tx.ExecContext(ctx, `
			UPDATE participants
			SET lifecycle_state = 'idle', waiting_since = NULL, updated_at = NOW()
			WHERE id = $1 AND lifecycle_state = 'waiting'
		`, id); err != nil {
			return fmt.Errorf("failed to reset participant: %w", err)
		}

		return nil
	})
}

// EvictFromPool 유효하지 않은 대기 엔트리 제거 (liveness sweep 전용)
func (s *PostgresStore) EvictFromPool(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM waiting_pool WHERE participant_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to evict pool entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE participants
			SET lifecycle_state = 'idle', waiting_since = NULL, updated_at = $2
			WHERE id = $1 AND lifecycle_state = 'waiting'
		`, id, now); err != nil {
			return fmt.Errorf("failed to reset evicted participant: %w", err)
		}

		return nil
	})
}

// ListPool 전체 대기열 조회 (fairness 내림차순, 입장 시각 오름차순)
func (s *PostgresStore) ListPool(ctx context.Context) ([]models.WaitingPoolEntry, error) {
	query := `
		SELECT participant_id, entered_at, stage, fairness_score
		FROM waiting_pool
		ORDER BY fairness_score DESC, entered_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pool: %w", err)
	}
	defer rows.Close()

	var entries []models.WaitingPoolEntry
	for rows.Next() {
		var e models.WaitingPoolEntry
		if err := rows.Scan(&e.ParticipantID, &e.EnteredAt, &e.Stage, &e.FairnessScore); err != nil {
			return nil, fmt.Errorf("failed to scan pool entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetPoolEntry 단일 대기열 엔트리 조회 (없으면 nil)
func (s *PostgresStore) GetPoolEntry(ctx context.Context, id string) (*models.WaitingPoolEntry, error) {
	query := `
		SELECT participant_id, entered_at, stage, fairness_score
		FROM waiting_pool
		WHERE participant_id = $1
	`
	e := &models.WaitingPoolEntry{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&e.ParticipantID, &e.EnteredAt, &e.Stage, &e.FairnessScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pool entry: %w", err)
	}
	return e, nil
}

// UpdateStage 저장된 완화 단계 갱신 (시간 기반 전진만 허용)
func (s *PostgresStore) UpdateStage(ctx context.Context, id string, stage models.RelaxationStage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE waiting_pool SET stage = $2 WHERE participant_id = $1 AND stage < $2`,
		id, stage,
	)
	return err
}
