package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/shopfront/internal/imageproxy"
	"github.com/hitoshi/shopfront/internal/model"
)

// ImageFetcherInterface は画像プロキシハンドラーが必要とするインターフェース。
type ImageFetcherInterface interface {
	Fetch(ctx context.Context, imageURL string) (*imageproxy.Image, error)
}

// ImageHandler は画像プロキシのHTTPハンドラー。
type ImageHandler struct {
	fetcher ImageFetcherInterface
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(fetcher ImageFetcherInterface) *ImageHandler {
	return &ImageHandler{fetcher: fetcher}
}

// ProxyImage は指定URLの画像を取得してそのまま返す。
// GET /api/images?url=...
func (h *ImageHandler) ProxyImage(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		handleServiceError(w, model.NewInvalidImageURLError("urlパラメータが指定されていません"))
		return
	}

	image, err := h.fetcher.Fetch(r.Context(), imageURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", image.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
	// 商品画像は不変URLのため長めにキャッシュする
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(image.Data)
}
