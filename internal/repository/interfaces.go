// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/gpark/shopgate/internal/model"
)

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// Create は注文と明細を同一トランザクションで作成する。
	Create(ctx context.Context, order *model.Order) error

	// FindByID は指定IDの注文を明細付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)

	// ListByUserID はユーザーの注文一覧を明細付きで返す。新しい順。
	ListByUserID(ctx context.Context, userID string) ([]*model.Order, error)

	// UpdateStatus は注文の状態と更新時刻を更新する。
	// 行単位の更新であり、楽観ロックは適用しない。
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error
}
