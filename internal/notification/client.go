// Package notification は通知サービスとの連携機能を提供する。
// メール通知とSlack通知の送信を通知サービスのREST APIで行う。
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
)

// defaultSendRate は通知サービスへの送信レート（秒あたり）。
// 通知はベストエフォートであり、バーストで通知サービスを圧迫しないよう送信間隔を制御する。
const (
	defaultSendRate  = 10
	defaultSendBurst = 20
)

// emailRequest はメール通知リクエストのボディ。
type emailRequest struct {
	UserID  string `json:"userId"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// slackRequest はSlack通知リクエストのボディ。
type slackRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Result は通知サービスの処理結果。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Client は通知サービスのクライアント。
// レートリミッターで送信ペースを制御する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	limiter    *rate.Limiter
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(defaultSendRate), defaultSendBurst),
	}
}

// SendEmail はメール通知を送信する。
func (c *Client) SendEmail(ctx context.Context, userID, subject, message string) (*Result, error) {
	payload, err := json.Marshal(emailRequest{UserID: userID, Subject: subject, Message: message})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}
	return c.send(ctx, "/api/notifications/email", payload)
}

// SendSlack はSlack通知を送信する。
func (c *Client) SendSlack(ctx context.Context, userID, message string) (*Result, error) {
	payload, err := json.Marshal(slackRequest{UserID: userID, Message: message})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}
	return c.send(ctx, "/api/notifications/slack", payload)
}

// send は通知サービスへPOSTリクエストを送信する。
// レートリミッターの許可を待ってから送信する。
func (c *Client) send(ctx context.Context, path string, payload []byte) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("送信レート制御の待機に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("通知サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("path", path),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("通知サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("path", path),
		)
		return nil, fmt.Errorf("通知サービスがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &result, nil
}
