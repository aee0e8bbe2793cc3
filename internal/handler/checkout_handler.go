package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
)

// CheckoutServiceInterface はチェックアウトハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	SetDetails(ctx context.Context, userID string, details commerce.CartDetails) (*model.Cart, error)
	CreatePaymentSession(ctx context.Context, userID, paymentProviderID string) (*commerce.PaymentSession, error)
	Complete(ctx context.Context, userID string) (*commerce.Order, error)
}

// CheckoutHandler はチェックアウトのHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// addressPayload は配送先住所のリクエスト表現。
type addressPayload struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Line1       string `json:"line_1" validate:"required,max=200"`
	Line2       string `json:"line_2" validate:"omitempty,max=200"`
	City        string `json:"city" validate:"required,max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=20"`
	CountryCode string `json:"country_code" validate:"required,len=2"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
}

// setDetailsRequest はチェックアウト詳細設定リクエストのボディ。
type setDetailsRequest struct {
	Email           string         `json:"email" validate:"required,email"`
	ShippingAddress addressPayload `json:"shipping_address" validate:"required"`
}

// paymentSessionRequest は決済セッション作成リクエストのボディ。
type paymentSessionRequest struct {
	ProviderID string `json:"provider_id" validate:"required"`
}

// SetDetails は連絡先と配送先を設定する。
// POST /api/checkout/details
func (h *CheckoutHandler) SetDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req setDetailsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	cart, err := h.service.SetDetails(r.Context(), userID, commerce.CartDetails{
		Email: req.Email,
		ShippingAddress: &commerce.Address{
			FirstName:   req.ShippingAddress.FirstName,
			LastName:    req.ShippingAddress.LastName,
			Line1:       req.ShippingAddress.Line1,
			Line2:       req.ShippingAddress.Line2,
			City:        req.ShippingAddress.City,
			PostalCode:  req.ShippingAddress.PostalCode,
			CountryCode: req.ShippingAddress.CountryCode,
			Phone:       req.ShippingAddress.Phone,
		},
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// CreatePaymentSession は決済セッションを作成する。
// POST /api/checkout/payment-sessions
func (h *CheckoutHandler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req paymentSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.CreatePaymentSession(r.Context(), userID, req.ProviderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Complete は注文を確定する。
// POST /api/checkout/complete
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Complete(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}
