package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/gpark/shopgate/internal/metrics"
	"github.com/gpark/shopgate/internal/model"
)

const bearerPrefix = "Bearer "

// 下流サービスへ伝搬するアイデンティティヘッダー。
// バックエンドサービスはこのヘッダーのみで呼び出し元を識別し、
// トークンを自前で再検証しない（信頼境界はゲートウェイ）。
const (
	headerUserName  = "X-User-Name"
	headerUserRoles = "X-User-Roles"
)

// TokenVerifier はトークン検証に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type TokenVerifier interface {
	Verify(encoded string) (*model.Identity, error)
}

// RouteRule はルートパターンとそのルートに必要なロール集合の対応。
type RouteRule struct {
	Pattern string
	Roles   []string
}

// RoutePolicy はルートごとの必要ロールを一元管理するマッピング。
// 条件分岐を散在させず、認可ポリシーを1箇所で監査できるようにする。
type RoutePolicy struct {
	rules        []RouteRule
	defaultRoles []string
}

// NewRoutePolicy はルールからRoutePolicyを生成する。
// 照合は最長プレフィックス一致。どのルールにも一致しないルートはUSERを要求する。
func NewRoutePolicy(rules []RouteRule) *RoutePolicy {
	sorted := make([]RouteRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Pattern) > len(sorted[j].Pattern)
	})

	return &RoutePolicy{
		rules:        sorted,
		defaultRoles: []string{"USER"},
	}
}

// ParseRoutePolicy は設定文字列からRoutePolicyを生成する。
// 形式: "パターン=ロール1|ロール2" をカンマ区切りで並べる。
// 例: "/api/admin=ADMIN,/api/orders=USER|ADMIN"
func ParseRoutePolicy(spec string) (*RoutePolicy, error) {
	var rules []RouteRule

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		pattern, rolesPart, found := strings.Cut(entry, "=")
		if !found || pattern == "" || rolesPart == "" {
			return nil, fmt.Errorf("ルートポリシーの形式が不正です: %q", entry)
		}

		var roles []string
		for _, role := range strings.Split(rolesPart, "|") {
			role = strings.TrimSpace(role)
			if role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("ルートポリシーにロールがありません: %q", entry)
		}

		rules = append(rules, RouteRule{Pattern: strings.TrimSpace(pattern), Roles: roles})
	}

	return NewRoutePolicy(rules), nil
}

// RequiredRoles はリクエストパスに必要なロール集合を返す。
func (p *RoutePolicy) RequiredRoles(path string) []string {
	for _, rule := range p.rules {
		if strings.HasPrefix(path, rule.Pattern) {
			return rule.Roles
		}
	}
	return p.defaultRoles
}

// NewAuthMiddleware はBearerトークンの検証とロールベース認可を行うミドルウェアを返す。
// ヘッダー欠落・不正なトークンは401、ロール不足は403でチェーンを短絡する。
// 検証成功時はアイデンティティをコンテキストに注入し、下流リクエストに
// X-User-Name / X-User-Roles ヘッダーを付け替える。
func NewAuthMiddleware(verifier TokenVerifier, policy *RoutePolicy, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, bearerPrefix) {
				slog.Warn("missing or malformed Authorization header",
					slog.String("path", r.URL.Path),
				)
				recordAuthFailure(collector, "missing_token")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			id, err := verifier.Verify(strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				recordAuthFailure(collector, "invalid_token")
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			required := policy.RequiredRoles(r.URL.Path)
			if !id.HasAnyRole(required) {
				slog.Warn("insufficient permissions",
					slog.String("path", r.URL.Path),
					slog.String("subject", id.Subject),
					slog.String("required_roles", strings.Join(required, ",")),
				)
				recordAuthFailure(collector, "forbidden")
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			// 外部から持ち込まれたアイデンティティヘッダーを除去してから付け直す
			r.Header.Del(headerUserName)
			r.Header.Del(headerUserRoles)
			r.Header.Set(headerUserName, id.Subject)
			r.Header.Set(headerUserRoles, strings.Join(id.Roles, ","))

			ctx := ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recordAuthFailure(collector metrics.MetricsCollector, reason string) {
	if collector != nil {
		collector.RecordAuthFailure(reason)
	}
}
