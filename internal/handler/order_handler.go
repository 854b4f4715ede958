package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gpark/shopgate/internal/model"
	"github.com/gpark/shopgate/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*model.Order, error)
	ConfirmOrder(ctx context.Context, orderID string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*model.Order, error)
	RefundOrder(ctx context.Context, orderID string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, next model.OrderStatus) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*model.Order, error)
}

// OrderHandler は注文管理のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: service}
}

// updateStatusRequest は注文状態更新リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// orderItemResponse は注文明細のAPIレスポンス。金額は文字列表現。
type orderItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// orderResponse は注文詳細のAPIレスポンス。
type orderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	Status      string              `json:"status"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Items       []orderItemResponse `json:"items"`
	Notes       string              `json:"notes"`
	OrderDate   time.Time           `json:"orderDate"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// orderSummaryResponse は注文一覧用の要約レスポンス。
type orderSummaryResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrderDate   time.Time       `json:"orderDate"`
	ItemCount   int             `json:"itemCount"`
}

func toOrderResponse(o *model.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		Items:       items,
		Notes:       o.Notes,
		OrderDate:   o.OrderDate,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toOrderSummaryResponse(o *model.Order) orderSummaryResponse {
	return orderSummaryResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		OrderDate:   o.OrderDate,
		ItemCount:   len(o.Items),
	}
}

// CreateOrder は注文作成を処理する。
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	if req.UserID == "" {
		writeInvalidRequest(w, "userIdは必須です。")
		return
	}
	if len(req.Items) == 0 {
		writeInvalidRequest(w, "注文には1件以上の明細が必要です。")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			writeInvalidRequest(w, "明細のproductIdは必須です。")
			return
		}
		if item.Quantity <= 0 {
			writeInvalidRequest(w, "明細のquantityは1以上である必要があります。")
			return
		}
	}

	created, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toOrderResponse(created))
}

// GetOrder は注文詳細を取得する。
// GET /api/orders/:id
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	o, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// ListUserOrders はユーザーの注文一覧を取得する。
// GET /api/users/:id/orders
func (h *OrderHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	orders, err := h.service.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summaries := make([]orderSummaryResponse, 0, len(orders))
	for _, o := range orders {
		summaries = append(summaries, toOrderSummaryResponse(o))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// ConfirmOrder は注文確定を処理する。
// POST /api/orders/:id/confirm
func (h *OrderHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	o, err := h.service.ConfirmOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// CancelOrder は注文取消を処理する。
// POST /api/orders/:id/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	o, err := h.service.CancelOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// RefundOrder は注文返金を処理する。
// POST /api/orders/:id/refund
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	o, err := h.service.RefundOrder(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// UpdateStatus は注文状態の更新を処理する。
// PATCH /api/orders/:id/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	next := model.OrderStatus(req.Status)
	if !next.IsValid() {
		writeInvalidRequest(w, "statusが不正です。")
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), orderID, next)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toOrderResponse(o))
}

// ============================================================
// エラーレスポンス共通処理
// ============================================================

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequest はリクエスト形式エラーを400で書き込む。
func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	})
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeOrderNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeProductInactive:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInsufficientStock,
		model.ErrCodeOrderAlreadyProcessed,
		model.ErrCodeOrderAlreadyCancelled,
		model.ErrCodeInvalidTransition:
		return http.StatusConflict
	case model.ErrCodePaymentFailed:
		return http.StatusPaymentRequired
	case model.ErrCodeCollaboratorUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
