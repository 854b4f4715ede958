// Package middleware はゲートウェイのHTTPミドルウェア（フィルタチェーン）を提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/gpark/shopgate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みアイデンティティを格納するためのキー。
var identityContextKey = contextKey("identity")

// IdentityFromContext はリクエストコンテキストから認証済みアイデンティティを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	id, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || id == nil {
		return nil, fmt.Errorf("identity not found in context")
	}
	return id, nil
}

// ContextWithIdentity はコンテキストにアイデンティティを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
