// Package payment は決済サービスとの連携機能を提供する。
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
)

// Request は決済処理リクエスト。
type Request struct {
	OrderID     string          `json:"orderId"`
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Result は決済サービスの処理結果。
type Result struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// Client は決済サービスのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// ProcessPayment は注文の決済を実行する。
// 決済サービスが success=false を返した場合もResultとして返す（エラーにはしない）。
// 通信障害やエラーステータスの場合のみエラーを返す。
func (c *Client) ProcessPayment(ctx context.Context, payReq Request) (*Result, error) {
	reqURL := c.baseURL + "/api/payments/process"

	payload, err := json.Marshal(payReq)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("決済サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("order_id", payReq.OrderID),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("決済サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("order_id", payReq.OrderID),
		)
		return nil, fmt.Errorf("決済サービスがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("決済サービスのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("order_id", payReq.OrderID),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &result, nil
}
