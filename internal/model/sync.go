// Package model はドメインモデルを定義する。
package model

import "time"

// SyncStatus はプロファイル同期タスクの状態を表す。
type SyncStatus string

const (
	// SyncStatusPending は同期待ちの状態。
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusDone は同期完了の状態。
	SyncStatusDone SyncStatus = "done"
	// SyncStatusAbandoned はリトライ上限または恒久エラーにより放棄された状態。
	SyncStatusAbandoned SyncStatus = "abandoned"
)

// ProfileSync はプロバイダーへのプロファイル同期リトライタスクを表す。
// ログイン・プロフィール更新時の同期が失敗した場合にキューイングされ、
// ワーカーがバックオフ付きで再試行する。
type ProfileSync struct {
	ID            string
	UserID        string
	Provider      Provider
	Status        SyncStatus
	Attempts      int
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
