// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusPending は支払い前の注文状態。確定・取消のどちらにも遷移できる。
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed は決済が完了した注文状態。
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusProcessing は出荷準備中の注文状態。
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped は出荷済みの注文状態。
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered は配達完了の注文状態。
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled は取消済みの注文状態。終端状態。
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded は返金済みの注文状態。終端状態。
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// IsValid は既知の注文状態かどうかを返す。
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminal は終端状態（以後いかなる遷移も許さない状態）かどうかを返す。
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// orderTransitions は状態遷移表。キーの状態から値の集合へのみ遷移できる。
// 終端状態（CANCELLED/REFUNDED）にはエントリがなく、どこへも遷移できない。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

// CanTransitionTo は現在の状態からnextへの遷移が状態遷移表で許可されているかを返す。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order は注文を表す。
// TotalAmount は作成時点の明細TotalPriceの合計に常に一致する。
type Order struct {
	ID          string
	UserID      string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	Notes       string
	OrderDate   time.Time
	UpdatedAt   time.Time
}

// OrderItem は注文明細を表す。
// ProductName と UnitPrice は注文時点の商品情報のスナップショットであり、
// 以後の商品側の変更は過去の注文に影響しない。
type OrderItem struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// Identity は認証済み呼び出し元のアイデンティティを表す。
// トークン検証成功時にのみ生成され、以後変更されない。
type Identity struct {
	Subject string
	Roles   []string
}

// HasAnyRole はrequiredのいずれかのロールを保持しているかを返す。
func (id *Identity) HasAnyRole(required []string) bool {
	for _, want := range required {
		for _, have := range id.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
