// Package order は注文履歴の参照ロジックを提供する。
// 注文データの実体はコマースプロバイダー側にあり、本パッケージは
// ログインユーザーのコマースidentityを解決した上で取得・絞り込みを行う。
package order

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/repository"
	"github.com/hitoshi/shopfront/internal/upstream"
)

const (
	// defaultLimit は注文一覧の既定件数。
	defaultLimit = 10
	// maxLimit は注文一覧の最大件数。
	maxLimit = 50
)

// CommerceOrders は注文参照に使用するコマースAPIの操作。
type CommerceOrders interface {
	ListOrders(ctx context.Context, customerID string) ([]commerce.Order, error)
	GetOrder(ctx context.Context, orderID string) (*commerce.Order, error)
}

// ListParams は注文一覧の取得条件。
type ListParams struct {
	// Status は注文ステータスでの絞り込み。空の場合は全件。
	Status string
	Limit  int
	Offset int
}

// OrderPage は注文一覧の1ページ。
type OrderPage struct {
	Orders []commerce.Order
	Count  int
	Limit  int
	Offset int
}

// Service は注文履歴参照のビジネスロジックを提供する。
type Service struct {
	client    CommerceOrders
	identRepo repository.IdentityRepository
}

// NewService はServiceを生成する。
func NewService(client CommerceOrders, identRepo repository.IdentityRepository) *Service {
	return &Service{
		client:    client,
		identRepo: identRepo,
	}
}

// ListOrders はユーザーの注文履歴を新しい順で返す。
// コマース側identityを持たないユーザー（ホスティッド側のみで登録済みで
// まだ購入がない場合など）は空の一覧を返す。
func (s *Service) ListOrders(ctx context.Context, userID string, params ListParams) (*OrderPage, error) {
	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	identity, err := s.commerceIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return &OrderPage{Orders: []commerce.Order{}, Limit: params.Limit, Offset: params.Offset}, nil
	}

	orders, err := s.client.ListOrders(ctx, identity.ProviderUserID)
	if err != nil {
		slog.Error("注文一覧の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if params.Status != "" {
		filtered := orders[:0]
		for _, o := range orders {
			if o.Status == params.Status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	total := len(orders)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}

	return &OrderPage{
		Orders: orders[start:end],
		Count:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

// GetOrder は注文を1件取得する。
// 注文の顧客IDがログインユーザーのコマースidentityと一致しない場合は
// 他ユーザーの注文の存在を漏らさないようORDER_NOT_FOUNDとして扱う。
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*commerce.Order, error) {
	if orderID == "" {
		return nil, model.NewInvalidPayloadError("注文IDが指定されていません")
	}

	identity, err := s.commerceIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	order, err := s.client.GetOrder(ctx, orderID)
	if err != nil {
		if upstream.IsNotFound(err) {
			return nil, model.NewOrderNotFoundError(orderID)
		}
		slog.Error("注文の取得に失敗しました",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewProviderUnavailableError(string(model.ProviderCommerce))
	}

	if order.CustomerID != identity.ProviderUserID {
		slog.Warn("他ユーザーの注文へのアクセスを拒否しました",
			slog.String("user_id", userID),
			slog.String("order_id", orderID),
		)
		return nil, model.NewOrderNotFoundError(orderID)
	}

	return order, nil
}

// commerceIdentity はユーザーのコマース側identityを返す。未連携の場合はnil。
func (s *Service) commerceIdentity(ctx context.Context, userID string) (*model.Identity, error) {
	identities, err := s.identRepo.ListByUserID(ctx, userID)
	if err != nil {
		slog.Error("identityの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUserNotFoundError()
	}
	for _, identity := range identities {
		if identity.Provider == model.ProviderCommerce {
			return identity, nil
		}
	}
	return nil, nil
}
