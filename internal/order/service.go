// Package order は注文のライフサイクル管理を提供する。
// 注文の作成・確定・取消・返金を外部サービス（商品・決済・通知）と
// 連携しながら進める。
package order

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gpark/shopgate/internal/metrics"
	"github.com/gpark/shopgate/internal/model"
	"github.com/gpark/shopgate/internal/notification"
	"github.com/gpark/shopgate/internal/payment"
	"github.com/gpark/shopgate/internal/product"
	"github.com/gpark/shopgate/internal/repository"
)

// ProductClient は商品サービスへの操作を抽象化する。
type ProductClient interface {
	GetProduct(ctx context.Context, productID string) (*product.Product, error)
	UpdateStock(ctx context.Context, productID string, quantity int) error
}

// PaymentClient は決済サービスへの操作を抽象化する。
type PaymentClient interface {
	ProcessPayment(ctx context.Context, req payment.Request) (*payment.Result, error)
}

// NotificationClient は通知サービスへの操作を抽象化する。
type NotificationClient interface {
	SendEmail(ctx context.Context, userID, subject, message string) (*notification.Result, error)
	SendSlack(ctx context.Context, userID, message string) (*notification.Result, error)
}

// CreateOrderItem は注文作成リクエストの明細。
type CreateOrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest は注文作成リクエスト。
type CreateOrderRequest struct {
	UserID string            `json:"userId"`
	Items  []CreateOrderItem `json:"items"`
	Notes  string            `json:"notes"`
}

// Service は注文のユースケースを実装する。
type Service struct {
	repo          repository.OrderRepository
	products      ProductClient
	payments      PaymentClient
	notifications NotificationClient
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time // テスト用に差し替え可能
}

// NewService はService の新しいインスタンスを生成する。
func NewService(
	repo repository.OrderRepository,
	products ProductClient,
	payments PaymentClient,
	notifications NotificationClient,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:          repo,
		products:      products,
		payments:      payments,
		notifications: notifications,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateOrder は注文を作成する。
// 明細ごとに商品情報を取得して在庫とアクティブ状態を検証し、
// 注文時点の商品名・単価をスナップショットとして保存する。
// 保存後の在庫減算は失敗してもロールバックせず、ログに記録する。
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	items := make([]model.OrderItem, 0, len(req.Items))

	for _, itemReq := range req.Items {
		start := time.Now()
		p, err := s.products.GetProduct(ctx, itemReq.ProductID)
		s.metrics.RecordCollaboratorLatency("product", time.Since(start))
		if err != nil {
			return nil, model.NewCollaboratorUnavailableError("product")
		}
		if p == nil {
			return nil, model.NewProductNotFoundError(itemReq.ProductID)
		}
		if !p.IsActive {
			return nil, model.NewProductInactiveError(p.Name)
		}
		if p.Stock < itemReq.Quantity {
			return nil, model.NewInsufficientStockError(p.Name)
		}

		qty := decimal.NewFromInt(int64(itemReq.Quantity))
		items = append(items, model.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    itemReq.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  p.Price.Mul(qty),
		})
	}

	totalAmount := decimal.Zero
	for _, item := range items {
		totalAmount = totalAmount.Add(item.TotalPrice)
	}

	now := s.now()
	order := &model.Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Status:      model.OrderStatusPending,
		TotalAmount: totalAmount,
		Items:       items,
		Notes:       req.Notes,
		OrderDate:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("注文の保存に失敗しました: %w", err)
	}

	// 在庫減算。保存済みの注文はロールバックしない。
	// 減算失敗は在庫の過剰表示につながるためログで追跡する。
	for _, item := range order.Items {
		if err := s.products.UpdateStock(ctx, item.ProductID, -item.Quantity); err != nil {
			s.logger.Warn("在庫減算に失敗しました",
				slog.String("order_id", order.ID),
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
		}
	}

	s.metrics.RecordOrderCreated()
	s.logger.Info("注文を作成しました",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.String("total_amount", order.TotalAmount.String()),
		slog.Int("item_count", len(order.Items)),
	)

	return order, nil
}

// ConfirmOrder は注文を確定する。
// PENDING以外の注文に対しては決済を呼び出さずにエラーを返す。
// 決済失敗時は注文をPENDINGのまま残す。
// 確定後の通知送信はベストエフォートであり、失敗しても確定は取り消さない。
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	if order.Status != model.OrderStatusPending {
		return nil, model.NewOrderAlreadyProcessedError(orderID)
	}

	start := time.Now()
	result, err := s.payments.ProcessPayment(ctx, payment.Request{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.TotalAmount,
		Description: fmt.Sprintf("注文 %s の決済", order.ID),
	})
	s.metrics.RecordCollaboratorLatency("payment", time.Since(start))
	if err != nil {
		s.metrics.RecordPaymentFailure()
		return nil, model.NewCollaboratorUnavailableError("payment")
	}
	if !result.Success {
		s.metrics.RecordPaymentFailure()
		s.logger.Warn("決済が拒否されました",
			slog.String("order_id", order.ID),
			slog.String("reason", result.Message),
		)
		return nil, model.NewPaymentFailedError(result.Message)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, order.ID, model.OrderStatusConfirmed, now); err != nil {
		return nil, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	order.Status = model.OrderStatusConfirmed
	order.UpdatedAt = now

	s.notifyEmail(ctx, order.UserID, "注文確定のお知らせ",
		fmt.Sprintf("注文 %s が確定しました（合計 %s）", order.ID, order.TotalAmount.String()))

	s.metrics.RecordOrderConfirmed()
	s.logger.Info("注文を確定しました",
		slog.String("order_id", order.ID),
		slog.String("transaction_id", result.TransactionID),
	)

	return order, nil
}

// CancelOrder は注文を取り消す。
// 取消済みの注文には専用のエラーを返す。在庫の復元は行わない。
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	if order.Status == model.OrderStatusCancelled {
		return nil, model.NewOrderAlreadyCancelledError(orderID)
	}
	if !order.Status.CanTransitionTo(model.OrderStatusCancelled) {
		return nil, model.NewInvalidTransitionError(order.Status, model.OrderStatusCancelled)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, now); err != nil {
		return nil, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	order.Status = model.OrderStatusCancelled
	order.UpdatedAt = now

	s.notifySlack(ctx, order.UserID, fmt.Sprintf("注文 %s がキャンセルされました", order.ID))

	s.metrics.RecordOrderCancelled()
	s.logger.Info("注文を取り消しました", slog.String("order_id", order.ID))

	return order, nil
}

// RefundOrder は確定済み以降の注文を返金する。
func (s *Service) RefundOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	if !order.Status.CanTransitionTo(model.OrderStatusRefunded) {
		return nil, model.NewInvalidTransitionError(order.Status, model.OrderStatusRefunded)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, order.ID, model.OrderStatusRefunded, now); err != nil {
		return nil, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	order.Status = model.OrderStatusRefunded
	order.UpdatedAt = now

	s.notifyEmail(ctx, order.UserID, "返金のお知らせ",
		fmt.Sprintf("注文 %s の返金を受け付けました（合計 %s）", order.ID, order.TotalAmount.String()))

	s.metrics.RecordOrderRefunded()
	s.logger.Info("注文を返金しました", slog.String("order_id", order.ID))

	return order, nil
}

// UpdateOrderStatus は注文の状態を遷移ルールに従って更新する。
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, next model.OrderStatus) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, model.NewInvalidTransitionError(order.Status, next)
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, order.ID, next, now); err != nil {
		return nil, fmt.Errorf("注文状態の更新に失敗しました: %w", err)
	}
	order.Status = next
	order.UpdatedAt = now

	s.logger.Info("注文状態を更新しました",
		slog.String("order_id", order.ID),
		slog.String("status", string(next)),
	)

	return order, nil
}

// GetOrder は注文を明細付きで取得する。
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return order, nil
}

// ListOrdersByUser はユーザーの注文一覧を新しい順で返す。
func (s *Service) ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	orders, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// notifyEmail はメール通知をベストエフォートで送信する。
// 失敗は記録するのみで呼び出し元にエラーを返さない。
func (s *Service) notifyEmail(ctx context.Context, userID, subject, message string) {
	result, err := s.notifications.SendEmail(ctx, userID, subject, message)
	if err != nil || !result.Success {
		s.metrics.RecordNotificationFailure("email")
		s.logger.Warn("メール通知の送信に失敗しました",
			slog.String("user_id", userID),
			slog.String("subject", subject),
		)
	}
}

// notifySlack はSlack通知をベストエフォートで送信する。
func (s *Service) notifySlack(ctx context.Context, userID, message string) {
	result, err := s.notifications.SendSlack(ctx, userID, message)
	if err != nil || !result.Success {
		s.metrics.RecordNotificationFailure("slack")
		s.logger.Warn("Slack通知の送信に失敗しました",
			slog.String("user_id", userID),
		)
	}
}
