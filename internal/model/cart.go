// Package model はドメインモデルを定義する。
package model

import "time"

// Cart はコマースプロバイダー側カートのローカルミラーを表す。
// ユーザーにつき1件。CommerceCartIDはプロバイダー側カートの識別子。
type Cart struct {
	ID             string
	UserID         string
	CommerceCartID string
	Currency       string
	Lines          []CartLine
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalCents はミラー上の合計金額（セント）を返す。
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, l := range c.Lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

// FindLine は外部ラインキーで明細を検索する。見つからない場合はnilを返す。
func (c *Cart) FindLine(lineKey string) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].LineKey == lineKey {
			return &c.Lines[i]
		}
	}
	return nil
}

// CartLine はカート明細を表す。
// LineKeyはコマースプロバイダーが採番する明細識別子で、
// リモート側との突き合わせに使用する。
type CartLine struct {
	ID             string
	CartID         string
	LineKey        string
	ProductID      string
	VariantID      string
	Title          string
	Size           string
	Color          string
	UnitPriceCents int64
	Quantity       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
