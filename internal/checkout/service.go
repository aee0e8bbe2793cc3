// Package checkout はチェックアウトフローのロジックを提供する。
// 配送先設定、決済セッション作成、注文確定の3段階をコマースプロバイダーに
// 委譲し、確定後にローカルのカートミラーを消去する。
package checkout

import (
	"context"
	"log/slog"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
)

// CommerceCheckout はチェックアウトに使用するコマースAPIの操作。
type CommerceCheckout interface {
	UpdateCartDetails(ctx context.Context, cartID string, details commerce.CartDetails) (*commerce.RemoteCart, error)
	CreatePaymentSession(ctx context.Context, cartID, paymentProviderID string) (*commerce.PaymentSession, error)
	CompleteCart(ctx context.Context, cartID string) (*commerce.Order, error)
}

// CartMirror はチェックアウトが参照するカートミラーの操作。
type CartMirror interface {
	Get(ctx context.Context, userID string) (*model.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Service はチェックアウトのビジネスロジックを提供する。
type Service struct {
	client CommerceCheckout
	carts  CartMirror
}

// NewService はServiceを生成する。
func NewService(client CommerceCheckout, carts CartMirror) *Service {
	return &Service{
		client: client,
		carts:  carts,
	}
}

// SetDetails はカートに連絡先メールアドレスと配送先住所を設定する。
func (s *Service) SetDetails(ctx context.Context, userID string, details commerce.CartDetails) (*model.Cart, error) {
	cart, err := s.checkoutableCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.client.UpdateCartDetails(ctx, cart.CommerceCartID, details); err != nil {
		slog.Error("カート詳細の設定に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	return cart, nil
}

// CreatePaymentSession は指定の決済プロバイダーで決済セッションを作成する。
func (s *Service) CreatePaymentSession(ctx context.Context, userID, paymentProviderID string) (*commerce.PaymentSession, error) {
	if paymentProviderID == "" {
		return nil, model.NewInvalidPayloadError("決済プロバイダーIDが指定されていません")
	}

	cart, err := s.checkoutableCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.client.CreatePaymentSession(ctx, cart.CommerceCartID, paymentProviderID)
	if err != nil {
		slog.Error("決済セッションの作成に失敗しました",
			slog.String("user_id", userID),
			slog.String("payment_provider_id", paymentProviderID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	return session, nil
}

// Complete は注文を確定する。
// 確定に成功したらローカルのカートミラーを消去する。ミラー消去の失敗は
// 注文自体は成立しているためログのみ残し、注文を返す。
func (s *Service) Complete(ctx context.Context, userID string) (*commerce.Order, error) {
	cart, err := s.checkoutableCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	order, err := s.client.CompleteCart(ctx, cart.CommerceCartID)
	if err != nil {
		slog.Error("注文の確定に失敗しました",
			slog.String("user_id", userID),
			slog.String("commerce_cart_id", cart.CommerceCartID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		slog.Warn("注文確定後のカートミラー消去に失敗しました",
			slog.String("user_id", userID),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("注文が確定しました",
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.Int64("display_id", order.DisplayID),
	)
	return order, nil
}

// checkoutableCart はチェックアウト可能なカートを取得する。
// カート未作成、リモートカート未連携、明細なしの場合はCART_EMPTYを返す。
func (s *Service) checkoutableCart(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.CommerceCartID == "" || len(cart.Lines) == 0 {
		return nil, model.NewCartEmptyError()
	}
	return cart, nil
}
