package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shopfront/internal/model"
)

// PostgresCartRepo はPostgreSQLを使用したカートミラーリポジトリ。
type PostgresCartRepo struct {
	db *sql.DB
}

// NewPostgresCartRepo はPostgresCartRepoを生成する。
func NewPostgresCartRepo(db *sql.DB) *PostgresCartRepo {
	return &PostgresCartRepo{db: db}
}

// FindByUserID はユーザーのカートを明細込みで取得する。見つからない場合はnilを返す。
func (r *PostgresCartRepo) FindByUserID(ctx context.Context, userID string) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, commerce_cart_id, currency, created_at, updated_at
		 FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CommerceCartID, &cart.Currency, &cart.CreatedAt, &cart.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	lines, err := r.listLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Lines = lines

	return cart, nil
}

// Create はカートを作成する。
func (r *PostgresCartRepo) Create(ctx context.Context, cart *model.Cart) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, commerce_cart_id, currency, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cart.ID, cart.UserID, cart.CommerceCartID, cart.Currency, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

// UpdateCommerceCartID はコマース側カートIDを更新する。
func (r *PostgresCartRepo) UpdateCommerceCartID(ctx context.Context, cartID, commerceCartID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE carts SET commerce_cart_id = $2, updated_at = now() WHERE id = $1`,
		cartID, commerceCartID,
	)
	if err != nil {
		return fmt.Errorf("failed to update commerce cart ID: %w", err)
	}
	return nil
}

// ReplaceLines はカートの明細を丸ごと置き換える。
// 削除と挿入を同一トランザクションで実行する。
func (r *PostgresCartRepo) ReplaceLines(ctx context.Context, cartID string, lines []model.CartLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE cart_id = $1`, cartID,
	); err != nil {
		return fmt.Errorf("failed to clear cart lines: %w", err)
	}

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_lines (id, cart_id, line_key, product_id, variant_id,
			     title, size, color, unit_price_cents, quantity, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			line.ID, cartID, line.LineKey, line.ProductID, line.VariantID,
			line.Title, line.Size, line.Color, line.UnitPriceCents, line.Quantity,
			line.CreatedAt, line.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert cart line: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET updated_at = now() WHERE id = $1`, cartID,
	); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertLine は明細を(cart_id, line_key)キーで冪等にUPSERTする。
func (r *PostgresCartRepo) UpsertLine(ctx context.Context, line *model.CartLine) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cart_lines (id, cart_id, line_key, product_id, variant_id,
		     title, size, color, unit_price_cents, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (cart_id, line_key) DO UPDATE SET
		     quantity = EXCLUDED.quantity,
		     unit_price_cents = EXCLUDED.unit_price_cents,
		     updated_at = EXCLUDED.updated_at`,
		line.ID, line.CartID, line.LineKey, line.ProductID, line.VariantID,
		line.Title, line.Size, line.Color, line.UnitPriceCents, line.Quantity,
		line.CreatedAt, line.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cart line: %w", err)
	}
	return nil
}

// DeleteLineByKey は外部ラインキーで明細を削除する。
func (r *PostgresCartRepo) DeleteLineByKey(ctx context.Context, cartID, lineKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE cart_id = $1 AND line_key = $2`,
		cartID, lineKey,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return nil
}

// DeleteLines はカートの全明細を削除する。
func (r *PostgresCartRepo) DeleteLines(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE cart_id = $1`,
		cartID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cart lines: %w", err)
	}
	return nil
}

// listLines はカートの明細一覧を取得する。
func (r *PostgresCartRepo) listLines(ctx context.Context, cartID string) ([]model.CartLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, cart_id, line_key, product_id, variant_id,
		        title, size, color, unit_price_cents, quantity, created_at, updated_at
		 FROM cart_lines
		 WHERE cart_id = $1
		 ORDER BY created_at`,
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var line model.CartLine
		if err := rows.Scan(&line.ID, &line.CartID, &line.LineKey, &line.ProductID, &line.VariantID,
			&line.Title, &line.Size, &line.Color, &line.UnitPriceCents, &line.Quantity,
			&line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cart lines: %w", err)
	}

	return lines, nil
}

// compile-time interface check
var _ CartRepository = (*PostgresCartRepo)(nil)
