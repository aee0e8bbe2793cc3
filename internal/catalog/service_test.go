package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// --- モック定義 ---

type mockCatalog struct {
	listProductsFn       func(ctx context.Context, params commerce.ListProductsParams) ([]commerce.Product, int, error)
	getProductByHandleFn func(ctx context.Context, handle string) (*commerce.Product, error)
}

func (m *mockCatalog) ListProducts(ctx context.Context, params commerce.ListProductsParams) ([]commerce.Product, int, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx, params)
	}
	return nil, 0, nil
}

func (m *mockCatalog) GetProductByHandle(ctx context.Context, handle string) (*commerce.Product, error) {
	if m.getProductByHandleFn != nil {
		return m.getProductByHandleFn(ctx, handle)
	}
	return nil, nil
}

// passthroughSanitizer はサニタイズ呼び出しを記録するテスト用実装。
type passthroughSanitizer struct {
	calls []string
}

func (s *passthroughSanitizer) Sanitize(rawHTML string) string {
	s.calls = append(s.calls, rawHTML)
	return "[sanitized]" + rawHTML
}

var _ ProductCatalog = (*mockCatalog)(nil)
var _ Sanitizer = (*passthroughSanitizer)(nil)

// --- テスト ---

func TestListProducts_NormalizesLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"0以下は既定値20", 0, 20},
		{"負数も既定値20", -5, 20},
		{"範囲内はそのまま", 50, 50},
		{"100超は100に丸める", 500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotParams commerce.ListProductsParams
			catalog := &mockCatalog{
				listProductsFn: func(_ context.Context, params commerce.ListProductsParams) ([]commerce.Product, int, error) {
					gotParams = params
					return nil, 0, nil
				},
			}
			svc := NewService(catalog, &passthroughSanitizer{})

			page, err := svc.ListProducts(context.Background(), commerce.ListProductsParams{Limit: tt.limit})
			if err != nil {
				t.Fatalf("ListProducts がエラーを返した: %v", err)
			}
			if gotParams.Limit != tt.wantLimit {
				t.Errorf("正規化後のlimit = %d, want %d", gotParams.Limit, tt.wantLimit)
			}
			if page.Limit != tt.wantLimit {
				t.Errorf("page.Limit = %d, want %d", page.Limit, tt.wantLimit)
			}
		})
	}
}

func TestListProducts_SanitizesDescriptions(t *testing.T) {
	catalog := &mockCatalog{
		listProductsFn: func(_ context.Context, _ commerce.ListProductsParams) ([]commerce.Product, int, error) {
			return []commerce.Product{
				{ID: "prod_01", Description: "<p>説明1</p>"},
				{ID: "prod_02", Description: "<p>説明2</p>"},
			}, 2, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	svc := NewService(catalog, sanitizer)

	page, err := svc.ListProducts(context.Background(), commerce.ListProductsParams{})
	if err != nil {
		t.Fatalf("ListProducts がエラーを返した: %v", err)
	}

	if len(sanitizer.calls) != 2 {
		t.Errorf("サニタイズ呼び出し回数 = %d, want 2", len(sanitizer.calls))
	}
	if page.Products[0].Description != "[sanitized]<p>説明1</p>" {
		t.Errorf("説明がサニタイズされるべき: got %q", page.Products[0].Description)
	}
}

func TestListProducts_ProviderError_ReturnsUnavailable(t *testing.T) {
	catalog := &mockCatalog{
		listProductsFn: func(_ context.Context, _ commerce.ListProductsParams) ([]commerce.Product, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}
	svc := NewService(catalog, &passthroughSanitizer{})

	_, err := svc.ListProducts(context.Background(), commerce.ListProductsParams{})
	if err == nil {
		t.Fatal("プロバイダー障害でエラーが返されるべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProviderUnavailable {
		t.Errorf("PROVIDER_UNAVAILABLEエラーであるべき: got %v", err)
	}
}

func TestGetProduct_Success_Sanitized(t *testing.T) {
	catalog := &mockCatalog{
		getProductByHandleFn: func(_ context.Context, handle string) (*commerce.Product, error) {
			if handle != "basic-tee" {
				t.Errorf("handle = %q, want basic-tee", handle)
			}
			return &commerce.Product{ID: "prod_01", Handle: handle, Description: "<p>商品説明</p>"}, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	svc := NewService(catalog, sanitizer)

	product, err := svc.GetProduct(context.Background(), "basic-tee")
	if err != nil {
		t.Fatalf("GetProduct がエラーを返した: %v", err)
	}
	if product.Description != "[sanitized]<p>商品説明</p>" {
		t.Errorf("説明がサニタイズされるべき: got %q", product.Description)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	catalog := &mockCatalog{
		getProductByHandleFn: func(_ context.Context, _ string) (*commerce.Product, error) {
			return nil, &upstream.StatusError{StatusCode: http.StatusNotFound}
		},
	}
	svc := NewService(catalog, &passthroughSanitizer{})

	_, err := svc.GetProduct(context.Background(), "no-such-product")
	if err == nil {
		t.Fatal("該当商品なしでエラーが返されるべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProductNotFound {
		t.Errorf("PRODUCT_NOT_FOUNDエラーであるべき: got %v", err)
	}
}

func TestGetProduct_EmptyHandle(t *testing.T) {
	svc := NewService(&mockCatalog{}, &passthroughSanitizer{})

	_, err := svc.GetProduct(context.Background(), "")
	if err == nil {
		t.Fatal("空ハンドルでエラーが返されるべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidPayload {
		t.Errorf("INVALID_PAYLOADエラーであるべき: got %v", err)
	}
}
