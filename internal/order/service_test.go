package order

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gpark/shopgate/internal/model"
	"github.com/gpark/shopgate/internal/notification"
	"github.com/gpark/shopgate/internal/payment"
	"github.com/gpark/shopgate/internal/product"
)

// ============================================================
// モック
// ============================================================

type mockRepo struct {
	createFn       func(ctx context.Context, order *model.Order) error
	findFn         func(ctx context.Context, id string) (*model.Order, error)
	listFn         func(ctx context.Context, userID string) ([]*model.Order, error)
	updateStatusFn func(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error

	createdOrders []*model.Order
	statusUpdates []model.OrderStatus
}

func (m *mockRepo) Create(ctx context.Context, order *model.Order) error {
	m.createdOrders = append(m.createdOrders, order)
	if m.createFn != nil {
		return m.createFn(ctx, order)
	}
	return nil
}

func (m *mockRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error {
	m.statusUpdates = append(m.statusUpdates, status)
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, orderID, status, updatedAt)
	}
	return nil
}

type stockCall struct {
	productID string
	quantity  int
}

type mockProducts struct {
	getFn         func(ctx context.Context, productID string) (*product.Product, error)
	updateStockFn func(ctx context.Context, productID string, quantity int) error

	stockCalls []stockCall
}

func (m *mockProducts) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	if m.getFn != nil {
		return m.getFn(ctx, productID)
	}
	return nil, nil
}

func (m *mockProducts) UpdateStock(ctx context.Context, productID string, quantity int) error {
	m.stockCalls = append(m.stockCalls, stockCall{productID: productID, quantity: quantity})
	if m.updateStockFn != nil {
		return m.updateStockFn(ctx, productID, quantity)
	}
	return nil
}

type mockPayments struct {
	processFn func(ctx context.Context, req payment.Request) (*payment.Result, error)

	calls []payment.Request
}

func (m *mockPayments) ProcessPayment(ctx context.Context, req payment.Request) (*payment.Result, error) {
	m.calls = append(m.calls, req)
	if m.processFn != nil {
		return m.processFn(ctx, req)
	}
	return &payment.Result{Success: true, TransactionID: "txn-test"}, nil
}

type mockNotifications struct {
	emailFn func(ctx context.Context, userID, subject, message string) (*notification.Result, error)
	slackFn func(ctx context.Context, userID, message string) (*notification.Result, error)

	emailCalls int
	slackCalls int
}

func (m *mockNotifications) SendEmail(ctx context.Context, userID, subject, message string) (*notification.Result, error) {
	m.emailCalls++
	if m.emailFn != nil {
		return m.emailFn(ctx, userID, subject, message)
	}
	return &notification.Result{Success: true}, nil
}

func (m *mockNotifications) SendSlack(ctx context.Context, userID, message string) (*notification.Result, error) {
	m.slackCalls++
	if m.slackFn != nil {
		return m.slackFn(ctx, userID, message)
	}
	return &notification.Result{Success: true}, nil
}

// mockMetrics は呼び出し回数を記録するメトリクスコレクター。
type mockMetrics struct {
	mu                   sync.Mutex
	ordersCreated        int
	ordersConfirmed      int
	ordersCancelled      int
	ordersRefunded       int
	paymentFailures      int
	notifyFailures       map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{notifyFailures: make(map[string]int)}
}

func (m *mockMetrics) RecordHTTPStatus(statusCode int) {}
func (m *mockMetrics) RecordAuthFailure(reason string) {}
func (m *mockMetrics) RecordRateLimitRejection()       {}

func (m *mockMetrics) RecordOrderCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersCreated++
}

func (m *mockMetrics) RecordOrderConfirmed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersConfirmed++
}

func (m *mockMetrics) RecordOrderCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersCancelled++
}

func (m *mockMetrics) RecordOrderRefunded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersRefunded++
}

func (m *mockMetrics) RecordPaymentFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentFailures++
}

func (m *mockMetrics) RecordNotificationFailure(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyFailures[channel]++
}

func (m *mockMetrics) RecordCollaboratorLatency(service string, duration time.Duration) {}

// ============================================================
// ヘルパー
// ============================================================

func newTestService(repo *mockRepo, products *mockProducts, payments *mockPayments, notifications *mockNotifications, collector *mockMetrics) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewService(repo, products, payments, notifications, collector, logger)
}

func activeProduct(id, name, price string, stock int) *product.Product {
	return &product.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
}

func pendingOrder(id string) *model.Order {
	return &model.Order{
		ID:          id,
		UserID:      "alice",
		Status:      model.OrderStatusPending,
		TotalAmount: decimal.RequireFromString("350.00"),
		OrderDate:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではないエラー: %v", err)
	}
	return apiErr.Code
}

// ============================================================
// CreateOrder
// ============================================================

func TestCreateOrder_Success(t *testing.T) {
	repo := &mockRepo{}
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			switch productID {
			case "p-1":
				return activeProduct("p-1", "Widget", "100.00", 10), nil
			case "p-2":
				return activeProduct("p-2", "Gadget", "50.00", 5), nil
			}
			return nil, nil
		},
	}
	collector := newMockMetrics()
	svc := newTestService(repo, products, &mockPayments{}, &mockNotifications{}, collector)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items: []CreateOrderItem{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 3},
		},
		Notes: "お急ぎ便",
	})
	if err != nil {
		t.Fatalf("CreateOrder がエラーを返した: %v", err)
	}

	// 100.00×2 + 50.00×3 = 350.00（10進の厳密計算）
	if !order.TotalAmount.Equal(decimal.RequireFromString("350.00")) {
		t.Errorf("TotalAmount = %s, want 350.00", order.TotalAmount)
	}
	if order.Status != model.OrderStatusPending {
		t.Errorf("Status = %s, want PENDING", order.Status)
	}
	if order.ID == "" {
		t.Error("IDが空")
	}
	if len(order.Items) != 2 {
		t.Fatalf("明細数 = %d, want 2", len(order.Items))
	}

	// 商品名と単価のスナップショット
	if order.Items[0].ProductName != "Widget" {
		t.Errorf("Items[0].ProductName = %s, want Widget", order.Items[0].ProductName)
	}
	if !order.Items[0].TotalPrice.Equal(decimal.RequireFromString("200.00")) {
		t.Errorf("Items[0].TotalPrice = %s, want 200.00", order.Items[0].TotalPrice)
	}
	if !order.Items[1].TotalPrice.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("Items[1].TotalPrice = %s, want 150.00", order.Items[1].TotalPrice)
	}

	// 保存されたこと
	if len(repo.createdOrders) != 1 {
		t.Fatalf("保存回数 = %d, want 1", len(repo.createdOrders))
	}

	// 在庫減算が負の増減量で呼ばれたこと
	if len(products.stockCalls) != 2 {
		t.Fatalf("在庫更新回数 = %d, want 2", len(products.stockCalls))
	}
	if products.stockCalls[0].quantity != -2 {
		t.Errorf("在庫増減量 = %d, want -2", products.stockCalls[0].quantity)
	}
	if products.stockCalls[1].quantity != -3 {
		t.Errorf("在庫増減量 = %d, want -3", products.stockCalls[1].quantity)
	}

	if collector.ordersCreated != 1 {
		t.Errorf("ordersCreated = %d, want 1", collector.ordersCreated)
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	repo := &mockRepo{}
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			return nil, nil
		},
	}
	svc := newTestService(repo, products, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items:  []CreateOrderItem{{ProductID: "missing", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("エラーを返すべき")
	}
	if code := apiErrorCode(t, err); code != model.ErrCodeProductNotFound {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeProductNotFound)
	}
	if len(repo.createdOrders) != 0 {
		t.Error("注文が保存されてはならない")
	}
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			p := activeProduct("p-1", "Widget", "100.00", 10)
			p.IsActive = false
			return p, nil
		},
	}
	svc := newTestService(&mockRepo{}, products, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items:  []CreateOrderItem{{ProductID: "p-1", Quantity: 1}},
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeProductInactive {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeProductInactive)
	}
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	repo := &mockRepo{}
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			return activeProduct("p-1", "Widget", "100.00", 1), nil
		},
	}
	svc := newTestService(repo, products, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items:  []CreateOrderItem{{ProductID: "p-1", Quantity: 2}},
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeInsufficientStock {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeInsufficientStock)
	}

	// 在庫不足時は保存も在庫減算も行われない
	if len(repo.createdOrders) != 0 {
		t.Error("注文が保存されてはならない")
	}
	if len(products.stockCalls) != 0 {
		t.Error("在庫減算が呼ばれてはならない")
	}
}

func TestCreateOrder_ProductServiceUnavailable(t *testing.T) {
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(&mockRepo{}, products, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items:  []CreateOrderItem{{ProductID: "p-1", Quantity: 1}},
	})
	if code := apiErrorCode(t, err); code != model.ErrCodeCollaboratorUnavailable {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeCollaboratorUnavailable)
	}
}

func TestCreateOrder_StockDecrementFailureDoesNotFailOrder(t *testing.T) {
	repo := &mockRepo{}
	products := &mockProducts{
		getFn: func(ctx context.Context, productID string) (*product.Product, error) {
			return activeProduct("p-1", "Widget", "100.00", 10), nil
		},
		updateStockFn: func(ctx context.Context, productID string, quantity int) error {
			return errors.New("timeout")
		},
	}
	svc := newTestService(repo, products, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID: "alice",
		Items:  []CreateOrderItem{{ProductID: "p-1", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("在庫減算失敗でも注文作成は成功すべき: %v", err)
	}
	if order.Status != model.OrderStatusPending {
		t.Errorf("Status = %s, want PENDING", order.Status)
	}
}

// ============================================================
// ConfirmOrder
// ============================================================

func TestConfirmOrder_Success(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	payments := &mockPayments{}
	notifications := &mockNotifications{}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, payments, notifications, collector)

	order, err := svc.ConfirmOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("ConfirmOrder がエラーを返した: %v", err)
	}
	if order.Status != model.OrderStatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", order.Status)
	}

	// 決済が注文合計額で呼ばれたこと
	if len(payments.calls) != 1 {
		t.Fatalf("決済呼び出し回数 = %d, want 1", len(payments.calls))
	}
	if !payments.calls[0].Amount.Equal(decimal.RequireFromString("350.00")) {
		t.Errorf("決済額 = %s, want 350.00", payments.calls[0].Amount)
	}
	if payments.calls[0].OrderID != "order-1" {
		t.Errorf("決済のorderId = %s, want order-1", payments.calls[0].OrderID)
	}

	// 状態更新と通知
	if len(repo.statusUpdates) != 1 || repo.statusUpdates[0] != model.OrderStatusConfirmed {
		t.Errorf("状態更新 = %v, want [CONFIRMED]", repo.statusUpdates)
	}
	if notifications.emailCalls != 1 {
		t.Errorf("メール通知回数 = %d, want 1", notifications.emailCalls)
	}
	if collector.ordersConfirmed != 1 {
		t.Errorf("ordersConfirmed = %d, want 1", collector.ordersConfirmed)
	}
}

func TestConfirmOrder_NotFound(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.ConfirmOrder(context.Background(), "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeOrderNotFound {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeOrderNotFound)
	}
}

func TestConfirmOrder_NonPendingNeverCallsPayment(t *testing.T) {
	statuses := []model.OrderStatus{
		model.OrderStatusConfirmed,
		model.OrderStatusProcessing,
		model.OrderStatusShipped,
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
		model.OrderStatusRefunded,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			repo := &mockRepo{
				findFn: func(ctx context.Context, id string) (*model.Order, error) {
					o := pendingOrder(id)
					o.Status = status
					return o, nil
				},
			}
			payments := &mockPayments{}
			svc := newTestService(repo, &mockProducts{}, payments, &mockNotifications{}, newMockMetrics())

			_, err := svc.ConfirmOrder(context.Background(), "order-1")
			if code := apiErrorCode(t, err); code != model.ErrCodeOrderAlreadyProcessed {
				t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeOrderAlreadyProcessed)
			}
			if len(payments.calls) != 0 {
				t.Error("PENDING以外の注文で決済が呼ばれてはならない")
			}
		})
	}
}

func TestConfirmOrder_PaymentDeclinedLeavesPending(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	payments := &mockPayments{
		processFn: func(ctx context.Context, req payment.Request) (*payment.Result, error) {
			return &payment.Result{Success: false, Message: "残高不足"}, nil
		},
	}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, payments, &mockNotifications{}, collector)

	_, err := svc.ConfirmOrder(context.Background(), "order-1")
	if code := apiErrorCode(t, err); code != model.ErrCodePaymentFailed {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodePaymentFailed)
	}

	// 決済失敗時は状態を更新しない（PENDINGのまま）
	if len(repo.statusUpdates) != 0 {
		t.Errorf("状態更新 = %v, want なし", repo.statusUpdates)
	}
	if collector.paymentFailures != 1 {
		t.Errorf("paymentFailures = %d, want 1", collector.paymentFailures)
	}
}

func TestConfirmOrder_PaymentServiceUnavailable(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	payments := &mockPayments{
		processFn: func(ctx context.Context, req payment.Request) (*payment.Result, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(repo, &mockProducts{}, payments, &mockNotifications{}, newMockMetrics())

	_, err := svc.ConfirmOrder(context.Background(), "order-1")
	if code := apiErrorCode(t, err); code != model.ErrCodeCollaboratorUnavailable {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeCollaboratorUnavailable)
	}
	if len(repo.statusUpdates) != 0 {
		t.Error("通信障害時は状態を更新してはならない")
	}
}

func TestConfirmOrder_NotificationFailureDoesNotFailConfirm(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	notifications := &mockNotifications{
		emailFn: func(ctx context.Context, userID, subject, message string) (*notification.Result, error) {
			return nil, errors.New("smtp down")
		},
	}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, notifications, collector)

	order, err := svc.ConfirmOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("通知失敗でも確定は成功すべき: %v", err)
	}
	if order.Status != model.OrderStatusConfirmed {
		t.Errorf("Status = %s, want CONFIRMED", order.Status)
	}
	if collector.notifyFailures["email"] != 1 {
		t.Errorf("notifyFailures[email] = %d, want 1", collector.notifyFailures["email"])
	}
}

// ============================================================
// CancelOrder
// ============================================================

func TestCancelOrder_FromPending(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	notifications := &mockNotifications{}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, notifications, collector)

	order, err := svc.CancelOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("CancelOrder がエラーを返した: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("Status = %s, want CANCELLED", order.Status)
	}
	if notifications.slackCalls != 1 {
		t.Errorf("Slack通知回数 = %d, want 1", notifications.slackCalls)
	}
	if collector.ordersCancelled != 1 {
		t.Errorf("ordersCancelled = %d, want 1", collector.ordersCancelled)
	}
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			o := pendingOrder(id)
			o.Status = model.OrderStatusCancelled
			return o, nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CancelOrder(context.Background(), "order-1")
	if code := apiErrorCode(t, err); code != model.ErrCodeOrderAlreadyCancelled {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeOrderAlreadyCancelled)
	}
}

func TestCancelOrder_InvalidFromShipped(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			o := pendingOrder(id)
			o.Status = model.OrderStatusShipped
			return o, nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.CancelOrder(context.Background(), "order-1")
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidTransition {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeInvalidTransition)
	}
}

func TestCancelOrder_NotificationFailureDoesNotFailCancel(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	notifications := &mockNotifications{
		slackFn: func(ctx context.Context, userID, message string) (*notification.Result, error) {
			return &notification.Result{Success: false, Message: "channel not found"}, nil
		},
	}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, notifications, collector)

	order, err := svc.CancelOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("通知失敗でも取消は成功すべき: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("Status = %s, want CANCELLED", order.Status)
	}
	if collector.notifyFailures["slack"] != 1 {
		t.Errorf("notifyFailures[slack] = %d, want 1", collector.notifyFailures["slack"])
	}
}

// ============================================================
// RefundOrder
// ============================================================

func TestRefundOrder_FromConfirmed(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			o := pendingOrder(id)
			o.Status = model.OrderStatusConfirmed
			return o, nil
		},
	}
	collector := newMockMetrics()
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, collector)

	order, err := svc.RefundOrder(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("RefundOrder がエラーを返した: %v", err)
	}
	if order.Status != model.OrderStatusRefunded {
		t.Errorf("Status = %s, want REFUNDED", order.Status)
	}
	if collector.ordersRefunded != 1 {
		t.Errorf("ordersRefunded = %d, want 1", collector.ordersRefunded)
	}
}

func TestRefundOrder_InvalidFromPending(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	// PENDINGは未決済なので返金できない
	_, err := svc.RefundOrder(context.Background(), "order-1")
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidTransition {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeInvalidTransition)
	}
}

// ============================================================
// UpdateOrderStatus / GetOrder / ListOrdersByUser
// ============================================================

func TestUpdateOrderStatus_ValidTransition(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			o := pendingOrder(id)
			o.Status = model.OrderStatusConfirmed
			return o, nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	order, err := svc.UpdateOrderStatus(context.Background(), "order-1", model.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("UpdateOrderStatus がエラーを返した: %v", err)
	}
	if order.Status != model.OrderStatusProcessing {
		t.Errorf("Status = %s, want PROCESSING", order.Status)
	}
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	repo := &mockRepo{
		findFn: func(ctx context.Context, id string) (*model.Order, error) {
			return pendingOrder(id), nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.UpdateOrderStatus(context.Background(), "order-1", model.OrderStatusShipped)
	if code := apiErrorCode(t, err); code != model.ErrCodeInvalidTransition {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeInvalidTransition)
	}
	if len(repo.statusUpdates) != 0 {
		t.Error("不正な遷移で状態を更新してはならない")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	_, err := svc.GetOrder(context.Background(), "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeOrderNotFound {
		t.Errorf("エラーコード = %s, want %s", code, model.ErrCodeOrderNotFound)
	}
}

func TestListOrdersByUser_ReturnsOrders(t *testing.T) {
	repo := &mockRepo{
		listFn: func(ctx context.Context, userID string) ([]*model.Order, error) {
			return []*model.Order{pendingOrder("order-2"), pendingOrder("order-1")}, nil
		},
	}
	svc := newTestService(repo, &mockProducts{}, &mockPayments{}, &mockNotifications{}, newMockMetrics())

	orders, err := svc.ListOrdersByUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListOrdersByUser がエラーを返した: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("注文数 = %d, want 2", len(orders))
	}
}
