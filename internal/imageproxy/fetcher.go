// Package imageproxy は商品画像のプロキシ取得機能を提供する。
// フロントエンドから渡された画像URLをSSRF検証付きで取得し、
// Content-Typeとデータをそのまま返す。CDN以外の任意URLも扱うため
// 取得先の検証とサイズ上限を必須とする。
package imageproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/shopfront/internal/model"
)

// fetchTimeout は画像取得のタイムアウト。
const fetchTimeout = 10 * time.Second

// SSRFValidator はSSRF防止機能のインターフェース。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// Image は取得した画像データ。
type Image struct {
	Data     []byte
	MimeType string
}

// Fetcher は画像プロキシ取得機能の実装。
type Fetcher struct {
	ssrfGuard SSRFValidator
	maxSize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, maxSize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
		maxSize:   maxSize,
	}
}

// Fetch は指定URLから画像を取得する。
// URL形式の不備はINVALID_IMAGE_URL、SSRF検証に引っかかるURLは
// SSRF_BLOCKEDとして返す。
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	if imageURL == "" {
		return nil, model.NewInvalidImageURLError("URLが指定されていません")
	}

	if err := f.ssrfGuard.ValidateURL(imageURL); err != nil {
		if isFormatError(err) {
			return nil, model.NewInvalidImageURLError(err.Error())
		}
		return nil, model.NewSSRFBlockedError()
	}

	client := f.ssrfGuard.NewSafeClient(fetchTimeout, f.maxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, model.NewInvalidImageURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Shopfront/1.0 Image Proxy")

	resp, err := client.Do(req)
	if err != nil {
		// safeurlはDNS解決後のIP検証で接続を拒否することがある
		if strings.Contains(err.Error(), "ip is not allowed") {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewInvalidImageURLError(fmt.Sprintf("取得先がステータス%dを返しました", resp.StatusCode))
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		return nil, model.NewInvalidImageURLError(fmt.Sprintf("画像以外のContent-Typeです: %s", mimeType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, model.NewInvalidImageURLError(fmt.Sprintf("画像サイズが上限%dバイトを超えています", f.maxSize))
	}

	return &Image{Data: body, MimeType: mimeType}, nil
}

// isFormatError はSSRF検証エラーのうちURL形式の不備によるものかを判定する。
// ブロック対象（プライベートIP等）との区別に使用する。
func isFormatError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid URL") ||
		strings.Contains(msg, "empty URL") ||
		strings.Contains(msg, "empty host") ||
		strings.Contains(msg, "disallowed scheme")
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
