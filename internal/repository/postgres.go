package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pairline/pairline-backend/internal/models"
	"github.com/pairline/pairline-backend/pkg/database"
)

// PostgresStore Store의 Postgres 구현.
// 엔티티별 메서드는 *_repository.go 파일에 나뉘어 있다.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// withTx 트랜잭션 경계 헬퍼. fn이 에러를 반환하면 롤백한다.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// PoolStats 대기열/활성 세션 통계 조회
func (s *PostgresStore) PoolStats(ctx context.Context) (*models.PoolStats, error) {
	stats := &models.PoolStats{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waiting_pool`,
	).Scan(&stats.Waiting); err != nil {
		return nil, fmt.Errorf("failed to count waiting pool: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status IN ('paired', 'voting')`,
	).Scan(&stats.ActiveSessions); err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return stats, nil
}
