package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shopfront/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)
	AddLine(ctx context.Context, userID, variantID string, quantity int) (*model.Cart, error)
	UpdateLineQuantity(ctx context.Context, userID, lineKey string, quantity int) (*model.Cart, error)
	RemoveLine(ctx context.Context, userID, lineKey string) (*model.Cart, error)
}

// CartHandler はカートのHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

// addLineRequest は明細追加リクエストのボディ。
type addLineRequest struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// updateLineRequest は明細数量変更リクエストのボディ。
// 数量0は削除として扱うためminは0。
type updateLineRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// cartLineResponse はカート明細のAPIレスポンス。
type cartLineResponse struct {
	LineKey        string `json:"line_key"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	Title          string `json:"title"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// cartResponse はカートのAPIレスポンス。
type cartResponse struct {
	ID         string             `json:"id"`
	Currency   string             `json:"currency,omitempty"`
	Lines      []cartLineResponse `json:"lines"`
	TotalCents int64              `json:"total_cents"`
}

// GetCart はカートを返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	cart, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// AddLine はカートに明細を追加する。
// POST /api/cart/lines
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	cart, err := h.service.AddLine(r.Context(), userID, req.VariantID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCartResponse(cart))
}

// UpdateLine は明細の数量を変更する。数量0は削除。
// PUT /api/cart/lines/{lineKey}
func (h *CartHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	lineKey := chi.URLParam(r, "lineKey")

	var req updateLineRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	cart, err := h.service.UpdateLineQuantity(r.Context(), userID, lineKey, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// RemoveLine は明細を削除する。
// DELETE /api/cart/lines/{lineKey}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	lineKey := chi.URLParam(r, "lineKey")

	cart, err := h.service.RemoveLine(r.Context(), userID, lineKey)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// toCartResponse はmodel.CartからAPIレスポンスに変換する。
func toCartResponse(cart *model.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineResponse{
			LineKey:        line.LineKey,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Title:          line.Title,
			Size:           line.Size,
			Color:          line.Color,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
	}
	return cartResponse{
		ID:         cart.ID,
		Currency:   cart.Currency,
		Lines:      lines,
		TotalCents: cart.TotalCents(),
	}
}
