// Package cart はカートのドメインロジックを提供する。
//
// カートの実体はコマースプロバイダー側にあり、本パッケージはその
// ローカルミラーを管理する。変更操作はリモート優先で実行し、リモートが
// 失敗した場合は操作を中断してミラーを更新しない。参照はリモートから
// 再取得し、取得できない場合のみミラーへフォールバックする。
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/repository"
)

// CommerceCart はカート操作に使用するコマースAPIの操作。
type CommerceCart interface {
	CreateCart(ctx context.Context, customerID string) (*commerce.RemoteCart, error)
	GetCart(ctx context.Context, cartID string) (*commerce.RemoteCart, error)
	AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*commerce.RemoteCart, error)
	UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*commerce.RemoteCart, error)
	DeleteLineItem(ctx context.Context, cartID, lineItemID string) (*commerce.RemoteCart, error)
}

// Service はカートミラーのビジネスロジックを提供する。
type Service struct {
	client   CommerceCart
	cartRepo repository.CartRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(client CommerceCart, cartRepo repository.CartRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		client:   client,
		cartRepo: cartRepo,
		metrics:  collector,
	}
}

// Get はカートを取得する。
// リモートカートを再取得してミラーを更新する。リモート取得に失敗した場合は
// 警告ログを残してローカルミラーをそのまま返す（参照の劣化フォールバック）。
func (s *Service) Get(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart mirror: %w", err)
	}
	if cart == nil {
		// カート未作成。空カートとして返す（永続化はしない）。
		return &model.Cart{UserID: userID}, nil
	}
	if cart.CommerceCartID == "" {
		return cart, nil
	}

	remote, err := s.client.GetCart(ctx, cart.CommerceCartID)
	if err != nil {
		slog.Warn("リモートカートの取得に失敗したためミラーを返します",
			slog.String("user_id", userID),
			slog.String("commerce_cart_id", cart.CommerceCartID),
			slog.String("error", err.Error()),
		)
		return cart, nil
	}

	if err := s.mirrorRemote(ctx, cart, remote); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddLine はカートに明細を追加する。
// 初回はリモートカートを作成してからラインを追加し、リモートが採番した
// ラインキーをミラーに反映する。リモート失敗時は操作を中断する。
func (s *Service) AddLine(ctx context.Context, userID, variantID string, quantity int) (*model.Cart, error) {
	if variantID == "" {
		return nil, model.NewInvalidPayloadError("バリアントIDが指定されていません")
	}
	if quantity <= 0 {
		return nil, model.NewInvalidPayloadError("数量は1以上を指定してください")
	}

	cart, err := s.ensureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.AddLineItem(ctx, cart.CommerceCartID, variantID, quantity)
	if err != nil {
		slog.Error("リモートカートへの明細追加に失敗しました",
			slog.String("user_id", userID),
			slog.String("variant_id", variantID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if err := s.mirrorRemote(ctx, cart, remote); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCartMutation("add_line")
	}
	return cart, nil
}

// UpdateLineQuantity は明細の数量を変更する。
// 数量0以下の指定は明細の削除として扱う。
func (s *Service) UpdateLineQuantity(ctx context.Context, userID, lineKey string, quantity int) (*model.Cart, error) {
	if quantity <= 0 {
		return s.RemoveLine(ctx, userID, lineKey)
	}

	cart, line, err := s.findLine(ctx, userID, lineKey)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.UpdateLineItem(ctx, cart.CommerceCartID, line.LineKey, quantity)
	if err != nil {
		slog.Error("リモートカートの数量変更に失敗しました",
			slog.String("user_id", userID),
			slog.String("line_key", lineKey),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if err := s.mirrorRemote(ctx, cart, remote); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCartMutation("update_quantity")
	}
	return cart, nil
}

// RemoveLine は明細を削除する。
func (s *Service) RemoveLine(ctx context.Context, userID, lineKey string) (*model.Cart, error) {
	cart, line, err := s.findLine(ctx, userID, lineKey)
	if err != nil {
		return nil, err
	}

	remote, err := s.client.DeleteLineItem(ctx, cart.CommerceCartID, line.LineKey)
	if err != nil {
		slog.Error("リモートカートの明細削除に失敗しました",
			slog.String("user_id", userID),
			slog.String("line_key", lineKey),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if err := s.mirrorRemote(ctx, cart, remote); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCartMutation("remove_line")
	}
	return cart, nil
}

// Clear はローカルミラーの全明細を消去する。チェックアウト完了後に呼び出す。
// リモートカートはプロバイダー側で注文に変換済みのため操作しない。
func (s *Service) Clear(ctx context.Context, userID string) error {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load cart mirror: %w", err)
	}
	if cart == nil {
		return nil
	}

	if err := s.cartRepo.DeleteLines(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart lines: %w", err)
	}
	// 注文確定済みのリモートカートIDは再利用できない
	if err := s.cartRepo.UpdateCommerceCartID(ctx, cart.ID, ""); err != nil {
		return fmt.Errorf("failed to reset commerce cart ID: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCartMutation("clear")
	}
	return nil
}

// ensureCart はローカルカートとリモートカートの存在を保証する。
func (s *Service) ensureCart(ctx context.Context, userID string) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart mirror: %w", err)
	}

	if cart == nil {
		now := time.Now()
		cart = &model.Cart{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.cartRepo.Create(ctx, cart); err != nil {
			return nil, fmt.Errorf("failed to create cart mirror: %w", err)
		}
	}

	if cart.CommerceCartID == "" {
		remote, err := s.client.CreateCart(ctx, "")
		if err != nil {
			slog.Error("リモートカートの作成に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
		}
		cart.CommerceCartID = remote.ID
		cart.Currency = remote.Currency
		if err := s.cartRepo.UpdateCommerceCartID(ctx, cart.ID, remote.ID); err != nil {
			return nil, fmt.Errorf("failed to store commerce cart ID: %w", err)
		}
	}

	return cart, nil
}

// findLine はローカルミラーから明細を特定する。
func (s *Service) findLine(ctx context.Context, userID, lineKey string) (*model.Cart, *model.CartLine, error) {
	cart, err := s.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart mirror: %w", err)
	}
	if cart == nil || cart.CommerceCartID == "" {
		return nil, nil, model.NewCartLineNotFoundError(lineKey)
	}

	line := cart.FindLine(lineKey)
	if line == nil {
		return nil, nil, model.NewCartLineNotFoundError(lineKey)
	}

	return cart, line, nil
}

// mirrorRemote はリモートカートの内容でローカルミラーを置き換える。
func (s *Service) mirrorRemote(ctx context.Context, cart *model.Cart, remote *commerce.RemoteCart) error {
	now := time.Now()
	lines := make([]model.CartLine, 0, len(remote.Items))
	for _, item := range remote.Items {
		lines = append(lines, model.CartLine{
			ID:             uuid.New().String(),
			CartID:         cart.ID,
			LineKey:        item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          item.Title,
			Size:           item.Size,
			Color:          item.Color,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.cartRepo.ReplaceLines(ctx, cart.ID, lines); err != nil {
		return fmt.Errorf("failed to mirror remote cart: %w", err)
	}

	cart.Lines = lines
	if remote.Currency != "" {
		cart.Currency = remote.Currency
	}
	cart.UpdatedAt = now
	return nil
}
