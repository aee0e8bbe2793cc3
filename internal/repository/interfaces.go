// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// プロバイダー間のレコード連携（email一致による既存ユーザーへの紐付け）に使用する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// AttachIdentity は既存ユーザーに新しいidentityを紐付ける。
	AttachIdentity(ctx context.Context, identity *model.Identity) error

	// UpdateProfile はユーザーのプロファイル属性を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、carts、profile_syncsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部プロバイダー紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider model.Provider, providerUserID string) (*model.Identity, error)

	// ListByUserID はユーザーに紐付く全identityを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// CartRepository はカートミラーの永続化インターフェース。
type CartRepository interface {
	// FindByUserID はユーザーのカートを明細込みで取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Cart, error)

	// Create はカートを作成する。
	Create(ctx context.Context, cart *model.Cart) error

	// UpdateCommerceCartID はコマース側カートIDを更新する。
	UpdateCommerceCartID(ctx context.Context, cartID, commerceCartID string) error

	// ReplaceLines はカートの明細を丸ごと置き換える。
	// リモートカートの取得結果でミラーを更新する際に使用する。
	ReplaceLines(ctx context.Context, cartID string, lines []model.CartLine) error

	// UpsertLine は明細を(cart_id, line_key)キーで冪等にUPSERTする。
	UpsertLine(ctx context.Context, line *model.CartLine) error

	// DeleteLineByKey は外部ラインキーで明細を削除する。
	DeleteLineByKey(ctx context.Context, cartID, lineKey string) error

	// DeleteLines はカートの全明細を削除する。チェックアウト完了後に使用する。
	DeleteLines(ctx context.Context, cartID string) error
}

// ProfileSyncRepository はプロファイル同期キューの永続化インターフェース。
type ProfileSyncRepository interface {
	// Enqueue は同期タスクをキューイングする。
	// 同一ユーザー×プロバイダーのpendingタスクが既に存在する場合は
	// next_attempt_atを前倒しするのみで重複行は作らない。
	Enqueue(ctx context.Context, sync *model.ProfileSync) error

	// ListDue は実行期限が到来したpendingタスクを取得する。
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDue(ctx context.Context, limit int) ([]*model.ProfileSync, error)

	// MarkDone はタスクを完了状態にする。
	MarkDone(ctx context.Context, id string) error

	// MarkAbandoned はタスクを放棄状態にする。
	MarkAbandoned(ctx context.Context, id, reason string) error

	// Reschedule は失敗したタスクの試行回数・エラー内容・次回実行時刻を更新する。
	Reschedule(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
