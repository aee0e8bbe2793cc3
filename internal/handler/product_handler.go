package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shopfront/internal/catalog"
	"github.com/hitoshi/shopfront/internal/commerce"
)

// CatalogServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, params commerce.ListProductsParams) (*catalog.ProductPage, error)
	GetProduct(ctx context.Context, handle string) (*commerce.Product, error)
}

// ProductHandler は商品カタログのHTTPハンドラー。
type ProductHandler struct {
	service CatalogServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service CatalogServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// productListResponse は商品一覧のAPIレスポンス。
type productListResponse struct {
	Products []commerce.Product `json:"products"`
	Count    int                `json:"count"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// ListProducts は商品一覧を返す。
// GET /api/products?limit=&offset=&q=&collection_id=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := commerce.ListProductsParams{
		Query:        query.Get("q"),
		CollectionID: query.Get("collection_id"),
	}
	if v := query.Get("limit"); v != "" {
		params.Limit, _ = strconv.Atoi(v)
	}
	if v := query.Get("offset"); v != "" {
		params.Offset, _ = strconv.Atoi(v)
	}

	page, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, productListResponse{
		Products: page.Products,
		Count:    page.Count,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
}

// GetProduct はハンドルで商品詳細を返す。
// GET /api/products/{handle}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	product, err := h.service.GetProduct(r.Context(), handle)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}
