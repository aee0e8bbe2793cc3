package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// PostgresProfileSyncRepo はPostgreSQLを使用したプロファイル同期キューリポジトリ。
type PostgresProfileSyncRepo struct {
	db *sql.DB
}

// NewPostgresProfileSyncRepo はPostgresProfileSyncRepoを生成する。
func NewPostgresProfileSyncRepo(db *sql.DB) *PostgresProfileSyncRepo {
	return &PostgresProfileSyncRepo{db: db}
}

// Enqueue は同期タスクをキューイングする。
// 同一ユーザー×プロバイダーのpendingタスクが既に存在する場合は
// next_attempt_atを前倒しするのみで重複行は作らない。
func (r *PostgresProfileSyncRepo) Enqueue(ctx context.Context, sync *model.ProfileSync) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profile_syncs (id, user_id, provider, status, attempts, last_error, next_attempt_at, created_at, updated_at)
		 VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, provider) WHERE status = 'pending' DO UPDATE SET
		     next_attempt_at = LEAST(profile_syncs.next_attempt_at, EXCLUDED.next_attempt_at),
		     updated_at = EXCLUDED.updated_at`,
		sync.ID, sync.UserID, sync.Provider, sync.Attempts, sync.LastError,
		sync.NextAttemptAt, sync.CreatedAt, sync.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue profile sync: %w", err)
	}
	return nil
}

// ListDue は実行期限が到来したpendingタスクを取得する。
// FOR UPDATE SKIP LOCKEDにより複数ワーカーが同一タスクを取得しないようにする。
func (r *PostgresProfileSyncRepo) ListDue(ctx context.Context, limit int) ([]*model.ProfileSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, provider, status, attempts, last_error, next_attempt_at, created_at, updated_at
		 FROM profile_syncs
		 WHERE status = 'pending' AND next_attempt_at <= now()
		 ORDER BY next_attempt_at
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due profile syncs: %w", err)
	}
	defer rows.Close()

	var syncs []*model.ProfileSync
	for rows.Next() {
		s := &model.ProfileSync{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Provider, &s.Status, &s.Attempts,
			&s.LastError, &s.NextAttemptAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile sync: %w", err)
		}
		syncs = append(syncs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile syncs: %w", err)
	}

	return syncs, nil
}

// MarkDone はタスクを完了状態にする。
func (r *PostgresProfileSyncRepo) MarkDone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profile_syncs SET status = 'done', last_error = '', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark profile sync done: %w", err)
	}
	return nil
}

// MarkAbandoned はタスクを放棄状態にする。
func (r *PostgresProfileSyncRepo) MarkAbandoned(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profile_syncs SET status = 'abandoned', last_error = $2, updated_at = now() WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark profile sync abandoned: %w", err)
	}
	return nil
}

// Reschedule は失敗したタスクの試行回数・エラー内容・次回実行時刻を更新する。
func (r *PostgresProfileSyncRepo) Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profile_syncs
		 SET attempts = $2, last_error = $3, next_attempt_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, attempts, lastError, nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule profile sync: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileSyncRepository = (*PostgresProfileSyncRepo)(nil)
