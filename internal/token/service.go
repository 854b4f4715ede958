// Package token は署名付き・期限付きアイデンティティトークンの発行と検証を提供する。
// トークンは自己完結型で、検証には共有シークレットのみを必要とする。
// 発行済みトークンはどこにも永続化しない（ステートレス検証）。
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gpark/shopgate/internal/model"
)

// claims はトークンに埋め込むクレームセット。
// subject・発行時刻・有効期限は登録済みクレームを使用し、ロールのみ独自クレームとする。
type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Service はHMAC-SHA256署名トークンの発行・検証サービス。
// シークレットは起動時に1回読み込まれ、以後変更されない。
// シークレットのローテーションは全発行済みトークンを無効化する運用上の操作であり、
// 実行時に切り替える設定ではない。
type Service struct {
	secret   []byte
	validity time.Duration

	// now は発行と検証で同一のクロックを使用するための時刻源。
	// テストで差し替え可能。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(secret string, validity time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
	}
}

// Issue はsubjectとロール集合を持つ署名付きトークンを発行する。
// 有効期限は現在時刻 + validity。ロールが空の場合はUSERを付与する。
func (s *Service) Issue(subject string, roles []string) (string, error) {
	if len(roles) == 0 {
		roles = []string{"USER"}
	}

	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
	})

	encoded, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return encoded, nil
}

// Verify はエンコード済みトークンを検証し、アイデンティティを返す。
// パース失敗・署名不一致・期限切れはすべてエラーとなり、
// subjectやロールは一切開示しない（フェイルクローズド）。
func (s *Service) Verify(encoded string) (*model.Identity, error) {
	parsed, err := jwt.ParseWithClaims(encoded, &claims{},
		func(t *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗しました: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("トークンのクレームが不正です")
	}

	return &model.Identity{
		Subject: c.Subject,
		Roles:   c.Roles,
	}, nil
}

// Validity はトークンの有効期間を返す。ログインレスポンスのexpiresIn用。
func (s *Service) Validity() time.Duration {
	return s.validity
}
