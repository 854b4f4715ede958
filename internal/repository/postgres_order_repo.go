package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gpark/shopgate/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// Create は注文と明細を同一トランザクションで作成する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount, notes, order_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.UserID, order.Status, order.TotalAmount,
		order.Notes, order.OrderDate, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("注文の作成に失敗しました: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, total_price)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, order.ID, item.ProductID, item.ProductName,
			item.Quantity, item.UnitPrice, item.TotalPrice,
		)
		if err != nil {
			return fmt.Errorf("注文明細の作成に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	var notes sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, total_amount, notes, order_date, updated_at
		 FROM orders WHERE id = $1`,
		id,
	).Scan(
		&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
		&notes, &order.OrderDate, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}

	order.Notes = nullStringValue(notes)

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// ListByUserID はユーザーの注文一覧を明細付きで返す。新しい順。
func (r *PostgresOrderRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, status, total_amount, notes, order_date, updated_at
		 FROM orders WHERE user_id = $1
		 ORDER BY order_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order := &model.Order{}
		var notes sql.NullString

		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
			&notes, &order.OrderDate, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("注文行のスキャンに失敗しました: %w", err)
		}
		order.Notes = nullStringValue(notes)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文一覧の読み取りに失敗しました: %w", err)
	}

	for _, order := range orders {
		items, err := r.loadItems(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		order.Items = items
	}

	return orders, nil
}

// UpdateStatus は注文の状態と更新時刻を更新する。
func (r *PostgresOrderRepo) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		orderID, status, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("更新対象の注文が存在しません: %s", orderID)
	}
	return nil
}

// loadItems は注文IDに紐づく明細を取得する。
func (r *PostgresOrderRepo) loadItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, product_name, quantity, unit_price, total_price
		 FROM order_items WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("注文明細の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("注文明細行のスキャンに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("注文明細の読み取りに失敗しました: %w", err)
	}

	return items, nil
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
