package sync

import (
	"time"

	"github.com/hitoshi/shopfront/internal/upstream"
)

// SyncResult はプロバイダーエラーに基づく同期結果の分類。
type SyncResult int

const (
	// SyncResultOK は同期成功。
	SyncResultOK SyncResult = iota
	// SyncResultPermanent は再試行しても成功しない恒久エラー（401/403/404など）。
	SyncResultPermanent
	// SyncResultTransient は再試行で回復しうる一時エラー（429/5xx/ネットワーク障害）。
	SyncResultTransient
)

const (
	// initialBackoff は指数バックオフの初回遅延（1分）。
	initialBackoff = 1 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（1時間）。
	maxBackoff = 1 * time.Hour
)

// ClassifyError はプロバイダー呼び出しのエラーを同期結果に分類する。
// ステータスコードが取れないエラー（ネットワーク障害等）は一時エラー扱い。
func ClassifyError(err error) SyncResult {
	if err == nil {
		return SyncResultOK
	}
	code := upstream.StatusCodeOf(err)
	switch {
	case code == 0:
		return SyncResultTransient
	case code == 429:
		return SyncResultTransient
	case code >= 500:
		return SyncResultTransient
	default:
		// 401/403/404を含む4xxは資格情報や紐付けの問題であり再試行しない
		return SyncResultPermanent
	}
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大1時間。
func CalculateBackoff(attempts int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
