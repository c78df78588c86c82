package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

const participantColumns = `id, lifecycle_state, session_id, partner_id, waiting_since, fairness_score, last_heartbeat, updated_at`

// EnsureParticipant 참가자 행 조회, 없으면 idle로 생성
func (s *PostgresStore) EnsureParticipant(ctx context.Context, id string, now time.Time) (*models.ParticipantState, error) {
	query := `
		INSERT INTO participants (id, lifecycle_state, fairness_score, last_heartbeat, updated_at)
		VALUES ($1, 'idle', 0, $2, $2)
		ON CONFLICT (id) DO UPDATE SET updated_at = participants.updated_at
		RETURNING ` + participantColumns

	return s.scanParticipant(s.db.QueryRowContext(ctx, query, id, now))
}

// GetParticipant 참가자 조회 (없으면 nil)
func (s *PostgresStore) GetParticipant(ctx context.Context, id string) (*models.ParticipantState, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	p, err := s.scanParticipant(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// UpdateHeartbeat 마지막 heartbeat 시각 갱신 (행이 없으면 생성)
func (s *PostgresStore) UpdateHeartbeat(ctx context.Context, id string, now time.Time) error {
	query := `
		INSERT INTO participants (id, lifecycle_state, fairness_score, last_heartbeat, updated_at)
		VALUES ($1, 'idle', 0, $2, $2)
		ON CONFLICT (id) DO UPDATE SET last_heartbeat = $2, updated_at = $2
	`
	_, err := s.db.ExecContext(ctx, query, id, now)
	return err
}

func (s *PostgresStore) scanParticipant(row *sql.Row) (*models.ParticipantState, error) {
	p := &models.ParticipantState{}
	err := row.Scan(
		&p.ID,
		&p.LifecycleState,
		&p.SessionID,
		&p.PartnerID,
		&p.WaitingSince,
		&p.FairnessScore,
		&p.LastHeartbeat,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
