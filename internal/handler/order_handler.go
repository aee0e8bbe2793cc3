package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	ListOrders(ctx context.Context, userID string, params order.ListParams) (*order.OrderPage, error)
	GetOrder(ctx context.Context, userID, orderID string) (*commerce.Order, error)
}

// OrderHandler は注文履歴のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// orderListResponse は注文一覧のAPIレスポンス。
type orderListResponse struct {
	Orders []commerce.Order `json:"orders"`
	Count  int              `json:"count"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ListOrders は注文履歴を新しい順で返す。
// GET /api/orders?status=&limit=&offset=
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	params := order.ListParams{
		Status: query.Get("status"),
	}
	if v := query.Get("limit"); v != "" {
		params.Limit, _ = strconv.Atoi(v)
	}
	if v := query.Get("offset"); v != "" {
		params.Offset, _ = strconv.Atoi(v)
	}

	page, err := h.service.ListOrders(r.Context(), userID, params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: page.Orders,
		Count:  page.Count,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// GetOrder は注文詳細を返す。
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "id")

	o, err := h.service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}
