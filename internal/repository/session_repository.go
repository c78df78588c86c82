package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pairline/pairline-backend/internal/models"
)

const sessionColumns = `id, participant_a_id, participant_b_id, status, vote_window_start, vote_window_end, vote_a, vote_b, outcome, created_at, resolved_at`

// GetSession 세션 조회 (없으면 nil)
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetActiveSessionFor 참가자가 속한 활성 세션 조회 (없으면 nil)
func (s *PostgresStore) GetActiveSessionFor(ctx context.Context, participantID string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status IN ('paired', 'voting')
		  AND (participant_a_id = $1 OR participant_b_id = $1)
		LIMIT 1
	`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, participantID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// ListActiveSessions 활성 세션 전체 조회
func (s *PostgresStore) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status IN ('paired', 'voting')`
	return s.querySessions(ctx, query)
}

// ListExpiredVoting 투표 시간이 만료된 voting 세션 조회
func (s *PostgresStore) ListExpiredVoting(ctx context.Context, now time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = 'voting' AND vote_window_end < $1`
	return s.querySessions(ctx, query, now)
}

// CreatePairing 페어링 확정의 원자 블록.
// 두 참가자 모두 아직 waiting이고 대기열에 있을 때만 성공하며,
// 아니면 ErrConflict로 전체를 거부한다.
func (s *PostgresStore) CreatePairing(ctx context.Context, session *models.Session) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// 두 행을 정규화된 순서로 잠가 교착을 피한다
		rows, err := tx.QueryContext(ctx, `
			SELECT id, lifecycle_state FROM participants
			WHERE id = ANY($1)
			ORDER BY id
			FOR UPDATE
		`, participantPair(session.ParticipantAID, session.ParticipantBID))
		if err != nil {
			return fmt.Errorf("failed to lock participants: %w", err)
		}
		locked := 0
		for rows.Next() {
			var id string
			var state models.LifecycleState
			if err := rows.Scan(&id, &state); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan locked participant: %w", err)
			}
			if state != models.LifecycleWaiting {
				rows.Close()
				return ErrConflict
			}
			locked++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if locked != 2 {
			return ErrConflict
		}

		// 대기열에서 제거 - 정확히 두 엔트리가 있어야 한다
		res, err := tx.ExecContext(ctx,
			`DELETE FROM waiting_pool WHERE participant_id = ANY($1)`,
			participantPair(session.ParticipantAID, session.ParticipantBID),
		)
		if err != nil {
			return fmt.Errorf("failed to remove pool entries: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 2 {
			return ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, participant_a_id, participant_b_id, status, vote_window_start, vote_window_end, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, session.ID, session.ParticipantAID, session.ParticipantBID, session.Status,
			session.VoteWindowStart, session.VoteWindowEnd, session.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		for _, m := range []struct{ id, partner string }{
			{session.ParticipantAID, session.ParticipantBID},
			{session.ParticipantBID, session.ParticipantAID},
		} {
			if _, err := tx.ExecContext(ctx, `
				UPDATE participants
				SET lifecycle_state = 'matched', session_id = $2, partner_id = $3, waiting_since = NULL, updated_at = $4
				WHERE id = $1
			`, m.id, session.ID, m.partner, session.CreatedAt); err != nil {
				return fmt.Errorf("failed to mark matched: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pairing_history (participant_a_id, participant_b_id, session_id, paired_at)
			VALUES ($1, $2, $3, $4)
		`, session.ParticipantAID, session.ParticipantBID, session.ID, session.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert pairing history: %w", err)
		}

		return nil
	})
}

// RecordVote 투표 슬롯 기록. 슬롯이 이미 차 있거나 세션이 voting이
// 아니면 ErrConflict.
func (s *PostgresStore) RecordVote(ctx context.Context, sessionID, participantID string, vote models.Vote) (*models.Session, error) {
	var updated *models.Session

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sess, err := scanSession(tx.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, sessionID))
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}

		if sess.Status != models.SessionStatusVoting || !sess.Member(participantID) {
			return ErrConflict
		}

		column := "vote_a"
		slot := sess.VoteA
		if participantID == sess.ParticipantBID {
			column = "vote_b"
			slot = sess.VoteB
		}
		if slot != nil {
			return ErrConflict
		}

		row := tx.QueryRowContext(ctx,
			`UPDATE sessions SET `+column+` = $2 WHERE id = $1 RETURNING `+sessionColumns,
			sessionID, vote,
		)
		updated, err = scanSession(row)
		if err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ResolveSession 세션을 resolved로 종료하고 참가자별 후속 상태를
// 같은 트랜잭션에서 반영한다. both_yes는 dispositions가 비어 있어
// 참가자 상태를 건드리지 않는다.
func (s *PostgresStore) ResolveSession(ctx context.Context, sessionID string, outcome models.Outcome, dispositions map[string]Disposition, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = 'resolved', outcome = $2, resolved_at = $3
			WHERE id = $1 AND status = 'voting'
		`, sessionID, outcome, now)
		if err != nil {
			return fmt.Errorf("failed to resolve session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}

		for id, disp := range dispositions {
			if !disp.Requeue {
				if _, err := tx.ExecContext(ctx, `
					UPDATE participants
					SET lifecycle_state = 'idle', session_id = NULL, partner_id = NULL, waiting_since = NULL, updated_at = $2
					WHERE id = $1
				`, id, now); err != nil {
					return fmt.Errorf("failed to idle participant: %w", err)
				}
				continue
			}

			var score int
			if err := tx.QueryRowContext(ctx, `
				UPDATE participants
				SET lifecycle_state = 'waiting', session_id = NULL, partner_id = NULL,
				    waiting_since = $2, fairness_score = fairness_score + $3, updated_at = $2
				WHERE id = $1
				RETURNING fairness_score
			`, id, now, disp.Boost).Scan(&score); err != nil {
				return fmt.Errorf("failed to requeue participant: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO waiting_pool (participant_id, entered_at, stage, fairness_score)
				VALUES ($1, $2, 0, $3)
				ON CONFLICT (participant_id)
				DO UPDATE SET entered_at = EXCLUDED.entered_at, stage = 0, fairness_score = EXCLUDED.fairness_score
			`, id, now, score); err != nil {
				return fmt.Errorf("failed to requeue pool entry: %w", err)
			}
		}

		return nil
	})
}

// CancelSession 연결 끊김에 의한 관리성 취소. 투표 결과와 구분되며
// 상대는 idle로 복귀하고 끊긴 쪽에는 쿨다운이 기록된다.
func (s *PostgresStore) CancelSession(ctx context.Context, sessionID, disconnectedID string, cooldownUntil, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = 'cancelled', resolved_at = $2
			WHERE id = $1 AND status IN ('paired', 'voting')
		`, sessionID, now)
		if err != nil {
			return fmt.Errorf("failed to cancel session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE participants
			SET lifecycle_state = 'idle', session_id = NULL, partner_id = NULL, waiting_since = NULL, updated_at = $2
			WHERE session_id = $1
		`, sessionID, now); err != nil {
			return fmt.Errorf("failed to release members: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cooldowns (participant_id, cooldown_until, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (participant_id)
			DO UPDATE SET cooldown_until = EXCLUDED.cooldown_until, created_at = EXCLUDED.created_at
		`, disconnectedID, cooldownUntil, now); err != nil {
			return fmt.Errorf("failed to write cooldown: %w", err)
		}

		return nil
	})
}

// ReleaseSession both_yes 핸드오프 이후 외부 협력자가 두 참가자를
// idle로 돌려보내는 단계
func (s *PostgresStore) ReleaseSession(ctx context.Context, sessionID string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var outcome models.Outcome
		err := tx.QueryRowContext(ctx,
			`SELECT outcome FROM sessions WHERE id = $1 AND status = 'resolved' FOR UPDATE`,
			sessionID,
		).Scan(&outcome)
		if err == sql.ErrNoRows {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if outcome != models.OutcomeBothYes {
			return ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE participants
			SET lifecycle_state = 'idle', session_id = NULL, partner_id = NULL, waiting_since = NULL, updated_at = $2
			WHERE session_id = $1
		`, sessionID, now); err != nil {
			return fmt.Errorf("failed to release members: %w", err)
		}

		return nil
	})
}

func (s *PostgresStore) querySessions(ctx context.Context, query string, args ...interface{}) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSessionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row *sql.Row) (*models.Session, error) {
	return scanSessionFrom(row)
}

func scanSessionRows(rows *sql.Rows) (*models.Session, error) {
	return scanSessionFrom(rows)
}

func scanSessionFrom(r rowScanner) (*models.Session, error) {
	sess := &models.Session{}
	var voteA, voteB, outcome sql.NullString

	err := r.Scan(
		&sess.ID,
		&sess.ParticipantAID,
		&sess.ParticipantBID,
		&sess.Status,
		&sess.VoteWindowStart,
		&sess.VoteWindowEnd,
		&voteA,
		&voteB,
		&outcome,
		&sess.CreatedAt,
		&sess.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if voteA.Valid {
		v := models.Vote(voteA.String)
		sess.VoteA = &v
	}
	if voteB.Valid {
		v := models.Vote(voteB.String)
		sess.VoteB = &v
	}
	if outcome.Valid {
		o := models.Outcome(outcome.String)
		sess.Outcome = &o
	}
	return sess, nil
}
