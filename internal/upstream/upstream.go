// Package upstream は外部プロバイダーAPI呼び出しの共通エラー型を提供する。
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError は外部APIが2xx以外のステータスを返したことを表すエラー。
// 呼び出し元がステータスコードに応じた分岐（認証失敗、重複、リトライ判定）を行う。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// StatusCodeOf はエラーからHTTPステータスコードを取り出す。
// StatusErrorでない場合（ネットワークエラー等）は0を返す。
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsUnauthorized は認証失敗（401）かどうかを判定する。
func IsUnauthorized(err error) bool {
	return StatusCodeOf(err) == http.StatusUnauthorized
}

// IsNotFound はリソース未存在（404）かどうかを判定する。
func IsNotFound(err error) bool {
	return StatusCodeOf(err) == http.StatusNotFound
}

// IsConflict は既存リソースとの重複（409または422）かどうかを判定する。
// プロバイダーによって重複登録時のステータスが異なるため両方を受け付ける。
func IsConflict(err error) bool {
	code := StatusCodeOf(err)
	return code == http.StatusConflict || code == http.StatusUnprocessableEntity
}
