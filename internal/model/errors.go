// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, order, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidProvider     = "INVALID_PROVIDER"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidPayload      = "INVALID_PAYLOAD"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeCartLineNotFound    = "CART_LINE_NOT_FOUND"
	ErrCodeCartEmpty           = "CART_EMPTY"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeInvalidImageURL     = "INVALID_IMAGE_URL"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
)

// NewAuthFailedError は認証失敗エラーを生成する。
// どのプロバイダーでも認証できなかった場合に返す。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewInvalidProviderError は無効なプロバイダー指定エラーを生成する。
func NewInvalidProviderError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProvider,
		Message:  fmt.Sprintf("無効なプロバイダーです: %s", provider),
		Category: "validation",
		Action:   "プロバイダーには commerce または hosted を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidPayloadError はリクエストペイロード不正エラーを生成する。
func NewInvalidPayloadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  fmt.Sprintf("リクエスト内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(handle string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", handle),
		Category: "order",
		Action:   "商品の識別子を確認してください。",
	}
}

// NewCartLineNotFoundError はカート明細未検出エラーを生成する。
func NewCartLineNotFoundError(lineKey string) *APIError {
	return &APIError{
		Code:     ErrCodeCartLineNotFound,
		Message:  fmt.Sprintf("指定されたカート明細が見つかりません: %s", lineKey),
		Category: "cart",
		Action:   "カートの内容を再読み込みしてください。",
	}
}

// NewCartEmptyError は空カートでのチェックアウト試行エラーを生成する。
func NewCartEmptyError() *APIError {
	return &APIError{
		Code:     ErrCodeCartEmpty,
		Message:  "カートが空のため注文を確定できません。",
		Category: "cart",
		Action:   "商品をカートに追加してから再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewProviderUnavailableError は外部プロバイダー呼び出し失敗エラーを生成する。
func NewProviderUnavailableError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderUnavailable,
		Message:  fmt.Sprintf("外部サービスとの通信に失敗しました: %s", provider),
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidImageURLError は無効な画像URLエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("無効な画像URLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を指定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを指定してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}
