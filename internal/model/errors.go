package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, order, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized           = "UNAUTHORIZED"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeOrderNotFound          = "ORDER_NOT_FOUND"
	ErrCodeProductNotFound        = "PRODUCT_NOT_FOUND"
	ErrCodeProductInactive        = "PRODUCT_INACTIVE"
	ErrCodeInsufficientStock      = "INSUFFICIENT_STOCK"
	ErrCodeOrderAlreadyProcessed  = "ORDER_ALREADY_PROCESSED"
	ErrCodeOrderAlreadyCancelled  = "ORDER_ALREADY_CANCELLED"
	ErrCodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	ErrCodePaymentFailed          = "PAYMENT_FAILED"
	ErrCodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
)

// NewUnauthorizedError は認証エラー（トークン欠落・不正・期限切れ）を生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "有効なトークンをAuthorizationヘッダーに指定してください。",
	}
}

// NewForbiddenError は認可エラー（ロール不足）を生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースへのアクセス権限がありません。",
		Category: "auth",
		Action:   "必要なロールを持つアカウントでログインしてください。",
	}
}

// NewInvalidCredentialsError は資格情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "資格情報を確認して再度ログインしてください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が上限に達しました。",
		Category: "system",
		Action:   "X-Rate-Limit-Resetに示された時刻以降に再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("商品情報が見つかりません: %s", productID),
		Category: "validation",
		Action:   "商品IDを確認してください。",
	}
}

// NewProductInactiveError は非アクティブ商品エラーを生成する。
func NewProductInactiveError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeProductInactive,
		Message:  fmt.Sprintf("販売停止中の商品です: %s", name),
		Category: "validation",
		Action:   "販売中の商品のみ注文できます。",
	}
}

// NewInsufficientStockError は在庫不足エラーを生成する。
func NewInsufficientStockError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientStock,
		Message:  fmt.Sprintf("在庫が不足しています: %s", name),
		Category: "validation",
		Action:   "数量を減らすか、在庫が補充されてから再度お試しください。",
	}
}

// NewOrderAlreadyProcessedError は処理済み注文の確定エラーを生成する。
func NewOrderAlreadyProcessedError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderAlreadyProcessed,
		Message:  fmt.Sprintf("既に処理済みの注文です: %s", orderID),
		Category: "order",
		Action:   "確定できるのはPENDING状態の注文のみです。",
	}
}

// NewOrderAlreadyCancelledError は取消済み注文への操作エラーを生成する。
func NewOrderAlreadyCancelledError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderAlreadyCancelled,
		Message:  fmt.Sprintf("既に取消済みの注文です: %s", orderID),
		Category: "order",
		Action:   "取消済みの注文は操作できません。",
	}
}

// NewInvalidTransitionError は不正な状態遷移エラーを生成する。
func NewInvalidTransitionError(from, to OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("許可されていない状態遷移です: %s -> %s", from, to),
		Category: "order",
		Action:   "注文の現在の状態を確認してください。",
	}
}

// NewPaymentFailedError は決済失敗エラーを生成する。
// 注文はPENDINGのまま残り、再度確定を試行できる。
func NewPaymentFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentFailed,
		Message:  fmt.Sprintf("決済に失敗しました: %s", reason),
		Category: "payment",
		Action:   "支払い方法を確認して再度確定してください。",
	}
}

// NewCollaboratorUnavailableError は外部サービス呼び出し失敗エラーを生成する。
// 内部の詳細は公開せず、一般的なメッセージのみを返す。
func NewCollaboratorUnavailableError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeCollaboratorUnavailable,
		Message:  fmt.Sprintf("外部サービスとの通信に失敗しました: %s", service),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
