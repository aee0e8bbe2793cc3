// Package model はドメインモデルを定義する。
package model

import "time"

// Provider は外部IDプロバイダーの識別子を表す。
type Provider string

const (
	// ProviderCommerce はヘッドレスコマースバックエンドの顧客ID基盤。
	ProviderCommerce Provider = "commerce"
	// ProviderHosted はホスティッド認証サービスのID基盤。
	ProviderHosted Provider = "hosted"
)

// IsValid はプロバイダー識別子が既知の値かを返す。
func (p Provider) IsValid() bool {
	return p == ProviderCommerce || p == ProviderHosted
}

// Other は2プロバイダー構成における相手側プロバイダーを返す。
func (p Provider) Other() Provider {
	if p == ProviderCommerce {
		return ProviderHosted
	}
	return ProviderCommerce
}

// User はストアフロント利用ユーザーを表す。
// 両プロバイダーのレコードをマージした非正規化レコードであり、
// 初回認証成功時に作成される。
type User struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	// CustomerNumber はコマースプロバイダーが採番する数値顧客ID。
	// コマース側と未連携の場合は0。
	CustomerNumber int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayName は表示用の名前を返す。姓名が空の場合はusernameにフォールバックする。
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// Identity は外部プロバイダーとの紐付け情報を表す。
// (provider, provider_user_id) の組はローカルユーザー高々1人に対応する。
type Identity struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
