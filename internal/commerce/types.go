package commerce

import "time"

// Customer はコマースプロバイダー側の顧客レコード。
type Customer struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CustomerNumber int64  `json:"customer_number"`
}

// Variant は商品バリアント。サイズ・カラーの組み合わせごとに1つ存在する。
type Variant struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	SKU            string `json:"sku"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	InStock        bool   `json:"in_stock"`
}

// Product はコマースプロバイダーの商品。
type Product struct {
	ID           string    `json:"id"`
	Handle       string    `json:"handle"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	Images       []string  `json:"images"`
	CollectionID string    `json:"collection_id"`
	Variants     []Variant `json:"variants"`
	CreatedAt    time.Time `json:"created_at"`
}

// LineItem はリモートカートの明細。
type LineItem struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	Title          string `json:"title"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// Address は配送先住所。
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Line1       string `json:"line_1"`
	Line2       string `json:"line_2,omitempty"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// RemoteCart はコマースプロバイダーが保持するカート。
type RemoteCart struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Currency        string     `json:"currency"`
	Items           []LineItem `json:"items"`
	ShippingAddress *Address   `json:"shipping_address,omitempty"`
}

// PaymentSession は決済セッション。中身は決済プロバイダー固有。
type PaymentSession struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Status     string         `json:"status"`
	Data       map[string]any `json:"data"`
}

// Order はコマースプロバイダー側の注文。
type Order struct {
	ID         string     `json:"id"`
	DisplayID  int64      `json:"display_id"`
	CustomerID string     `json:"customer_id"`
	Status     string     `json:"status"`
	Currency   string     `json:"currency"`
	TotalCents int64      `json:"total_cents"`
	Items      []LineItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListProductsParams は商品一覧取得のパラメータ。
type ListProductsParams struct {
	Limit        int
	Offset       int
	Query        string
	CollectionID string
}

// ProfileUpdate は顧客プロファイル更新のペイロード。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// CartDetails はチェックアウト前にカートへ設定する購入者情報。
type CartDetails struct {
	Email           string   `json:"email"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
}
