// Package product は商品サービスとの連携機能を提供する。
// 商品情報の取得と在庫数の更新を商品サービスのREST APIで行う。
package product

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

// Product は商品サービスが返す商品情報。
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
}

// stockUpdateRequest は在庫更新リクエストのボディ。
type stockUpdateRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Client は商品サービスのクライアント。
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

// GetProduct は商品IDを指定して商品情報を取得する。
// 商品が存在しない場合（404）は (nil, nil) を返す。
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	reqURL := fmt.Sprintf("%s/api/products/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("商品サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("product_id", productID),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("商品サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("product_id", productID),
		)
		return nil, fmt.Errorf("商品サービスがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var p Product
	if err := json.Unmarshal(body, &p); err != nil {
		c.logger.Error("商品サービスのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("product_id", productID),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return &p, nil
}

// UpdateStock は商品の在庫数を増減する。
// quantityは増減量を指定する（在庫を減らす場合は負数）。
func (c *Client) UpdateStock(ctx context.Context, productID string, quantity int) error {
	reqURL := fmt.Sprintf("%s/api/products/%s/stock", c.baseURL, productID)

	payload, err := json.Marshal(stockUpdateRequest{ProductID: productID, Quantity: quantity})
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("在庫更新リクエストに失敗しました",
			slog.String("error", err.Error()),
			slog.String("product_id", productID),
			slog.Int("quantity", quantity),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		c.logger.Error("在庫更新がエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("product_id", productID),
		)
		return fmt.Errorf("商品サービスがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
