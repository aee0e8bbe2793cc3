// Package commerce はヘッドレスコマースプロバイダーのStore APIクライアントを提供する。
// 顧客認証、商品カタログ、カート、チェックアウト、注文履歴の各エンドポイントを呼び出す。
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// providerLabel はメトリクスのproviderラベル値。
const providerLabel = "commerce"

// Client はコマースプロバイダーStore APIのクライアント。
type Client struct {
	httpClient     *http.Client
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	baseURL        string
	publishableKey string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, baseURL, publishableKey string) *Client {
	return &Client{
		httpClient:     httpClient,
		logger:         logger,
		metrics:        collector,
		baseURL:        baseURL,
		publishableKey: publishableKey,
	}
}

// AuthenticateCustomer はメールアドレスとパスワードで顧客を認証する。
// 認証失敗時はステータス401のStatusErrorを返す。
func (c *Client) AuthenticateCustomer(ctx context.Context, email, password string) (*Customer, error) {
	body := map[string]string{"email": email, "password": password}
	var result struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/customers/auth", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

// CreateCustomer は顧客を新規作成する。
// 同一メールアドレスの顧客が既に存在する場合はステータス422のStatusErrorを返す。
func (c *Client) CreateCustomer(ctx context.Context, email, password, firstName, lastName string) (*Customer, error) {
	body := map[string]string{
		"email":      email,
		"password":   password,
		"first_name": firstName,
		"last_name":  lastName,
	}
	var result struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/customers", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

// GetCustomer は顧客IDで顧客を取得する。
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var result struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/customers/"+url.PathEscape(customerID), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

// UpdateCustomer は顧客プロファイルを更新する。
func (c *Client) UpdateCustomer(ctx context.Context, customerID string, update ProfileUpdate) (*Customer, error) {
	var result struct {
		Customer Customer `json:"customer"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/customers/"+url.PathEscape(customerID), nil, update, &result); err != nil {
		return nil, err
	}
	return &result.Customer, nil
}

// ListProducts は商品一覧を取得する。総件数も返す。
func (c *Client) ListProducts(ctx context.Context, params ListProductsParams) ([]Product, int, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		q.Set("offset", strconv.Itoa(params.Offset))
	}
	if params.Query != "" {
		q.Set("q", params.Query)
	}
	if params.CollectionID != "" {
		q.Set("collection_id", params.CollectionID)
	}

	var result struct {
		Products []Product `json:"products"`
		Count    int       `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/products", q, nil, &result); err != nil {
		return nil, 0, err
	}
	return result.Products, result.Count, nil
}

// GetProductByHandle はハンドル（URLスラッグ）で商品を1件取得する。
// 該当商品がない場合はステータス404のStatusErrorを返す。
func (c *Client) GetProductByHandle(ctx context.Context, handle string) (*Product, error) {
	q := url.Values{}
	q.Set("handle", handle)

	var result struct {
		Products []Product `json:"products"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/products", q, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Products) == 0 {
		return nil, &upstream.StatusError{StatusCode: http.StatusNotFound, Body: "product not found"}
	}
	return &result.Products[0], nil
}

// CreateCart は新しいリモートカートを作成する。
func (c *Client) CreateCart(ctx context.Context, customerID string) (*RemoteCart, error) {
	body := map[string]string{"customer_id": customerID}
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/carts", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// GetCart はリモートカートを取得する。
func (c *Client) GetCart(ctx context.Context, cartID string) (*RemoteCart, error) {
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/carts/"+url.PathEscape(cartID), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// AddLineItem はカートに明細を追加し、更新後のカートを返す。
func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) (*RemoteCart, error) {
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/line-items"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// UpdateLineItem は明細の数量を変更し、更新後のカートを返す。
func (c *Client) UpdateLineItem(ctx context.Context, cartID, lineItemID string, quantity int) (*RemoteCart, error) {
	body := map[string]any{"quantity": quantity}
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineItemID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// DeleteLineItem は明細を削除し、更新後のカートを返す。
func (c *Client) DeleteLineItem(ctx context.Context, cartID, lineItemID string) (*RemoteCart, error) {
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/line-items/" + url.PathEscape(lineItemID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// UpdateCartDetails はカートに購入者メールアドレスと配送先を設定する。
func (c *Client) UpdateCartDetails(ctx context.Context, cartID string, details CartDetails) (*RemoteCart, error) {
	var result struct {
		Cart RemoteCart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodPost, "/store/carts/"+url.PathEscape(cartID), nil, details, &result); err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// CreatePaymentSession は指定した決済プロバイダーの決済セッションを初期化する。
func (c *Client) CreatePaymentSession(ctx context.Context, cartID, paymentProviderID string) (*PaymentSession, error) {
	body := map[string]string{"provider_id": paymentProviderID}
	var result struct {
		PaymentSession PaymentSession `json:"payment_session"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/payment-sessions"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, err
	}
	return &result.PaymentSession, nil
}

// CompleteCart はカートを注文に確定する。
func (c *Client) CompleteCart(ctx context.Context, cartID string) (*Order, error) {
	var result struct {
		Order Order `json:"order"`
	}
	path := "/store/carts/" + url.PathEscape(cartID) + "/complete"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Order, nil
}

// ListOrders は顧客の注文一覧を取得する。
func (c *Client) ListOrders(ctx context.Context, customerID string) ([]Order, error) {
	var result struct {
		Orders []Order `json:"orders"`
	}
	path := "/store/customers/" + url.PathEscape(customerID) + "/orders"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return result.Orders, nil
}

// GetOrder は注文IDで注文を1件取得する。
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var result struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/store/orders/"+url.PathEscape(orderID), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result.Order, nil
}

// do はStore APIへのHTTPリクエストを実行し、2xxレスポンスをoutへデコードする。
// 2xx以外はStatusErrorを返す。レイテンシとステータスコードをメトリクスに記録する。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("x-publishable-api-key", c.publishableKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(providerLabel, time.Since(start))
	}
	if err != nil {
		c.logger.Error("コマースAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("コマースAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamStatus(providerLabel, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("コマースAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &upstream.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}
