// Package catalog は商品カタログの参照ロジックを提供する。
// コマースプロバイダーへの薄いリードスルーであり、商品説明HTMLの
// サニタイズと一覧取得パラメータの正規化を担う。
package catalog

import (
	"context"
	"log/slog"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/upstream"
)

const (
	// defaultLimit は一覧取得の既定件数。
	defaultLimit = 20
	// maxLimit は一覧取得の最大件数。
	maxLimit = 100
)

// ProductCatalog はカタログ参照に使用するコマースAPIの操作。
type ProductCatalog interface {
	ListProducts(ctx context.Context, params commerce.ListProductsParams) ([]commerce.Product, int, error)
	GetProductByHandle(ctx context.Context, handle string) (*commerce.Product, error)
}

// Sanitizer はHTMLサニタイズの操作。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ProductPage は商品一覧の1ページ。
type ProductPage struct {
	Products []commerce.Product
	Count    int
	Limit    int
	Offset   int
}

// Service は商品カタログ参照のビジネスロジックを提供する。
type Service struct {
	catalog   ProductCatalog
	sanitizer Sanitizer
}

// NewService はServiceを生成する。
func NewService(catalog ProductCatalog, sanitizer Sanitizer) *Service {
	return &Service{
		catalog:   catalog,
		sanitizer: sanitizer,
	}
}

// ListProducts は商品一覧を取得する。
// limitは1〜100の範囲に正規化される（0以下は既定値20）。
// 商品説明HTMLはサニタイズしてから返す。
func (s *Service) ListProducts(ctx context.Context, params commerce.ListProductsParams) (*ProductPage, error) {
	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	products, count, err := s.catalog.ListProducts(ctx, params)
	if err != nil {
		slog.Error("商品一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	for i := range products {
		products[i].Description = s.sanitizer.Sanitize(products[i].Description)
	}

	return &ProductPage{
		Products: products,
		Count:    count,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}, nil
}

// GetProduct はハンドルで商品を1件取得する。
// 該当商品がない場合はPRODUCT_NOT_FOUNDエラーを返す。
func (s *Service) GetProduct(ctx context.Context, handle string) (*commerce.Product, error) {
	if handle == "" {
		return nil, model.NewInvalidPayloadError("商品ハンドルが指定されていません")
	}

	product, err := s.catalog.GetProductByHandle(ctx, handle)
	if err != nil {
		if upstream.IsNotFound(err) {
			return nil, model.NewProductNotFoundError(handle)
		}
		slog.Error("商品の取得に失敗しました",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	product.Description = s.sanitizer.Sanitize(product.Description)
	return product, nil
}
