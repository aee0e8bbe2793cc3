// Package auth はマルチプロバイダー認証の照合処理とセッション管理を提供する。
// コマースプロバイダーとホスト型認証プロバイダーの2系統のID基盤を
// ローカルのusers/identitiesレコードに突き合わせる。
package auth

import (
	"context"

	"github.com/hitoshi/shopfront/internal/model"
)

// RemoteProfile は外部プロバイダーから取得したユーザープロファイル。
type RemoteProfile struct {
	Provider       model.Provider
	ProviderUserID string
	Email          string
	FirstName      string
	LastName       string
	// CustomerNumber はコマースプロバイダーのみが持つ数値顧客ID。それ以外は0。
	CustomerNumber int64
}

// ProfileChanges はプロファイル更新の差分。nilのフィールドは変更しない。
type ProfileChanges struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Provider は外部IDプロバイダーの抽象インターフェース。
// 失敗時のエラーにはupstream.StatusErrorが含まれ、呼び出し元が
// 認証失敗・重複・一時障害を判別する。
type Provider interface {
	// Name はプロバイダー識別子を返す。
	Name() model.Provider

	// Authenticate はメールアドレスとパスワードで認証し、プロファイルを返す。
	Authenticate(ctx context.Context, email, password string) (*RemoteProfile, error)

	// Register はプロバイダー側にユーザーを新規作成する。
	Register(ctx context.Context, email, password, firstName, lastName string) (*RemoteProfile, error)

	// UpdateRemoteProfile はプロバイダー側のプロファイルを更新する。
	UpdateRemoteProfile(ctx context.Context, providerUserID string, changes ProfileChanges) error
}
