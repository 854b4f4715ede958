package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gpark/shopgate/internal/model"
)

// TokenServiceInterface は認証ハンドラーが必要とするトークン操作のインターフェース。
type TokenServiceInterface interface {
	// Issue は署名済みトークンを発行する。
	Issue(subject string, roles []string) (string, error)
	// Verify はトークンを検証しアイデンティティを返す。
	Verify(encoded string) (*model.Identity, error)
	// Validity はトークンの有効期間を返す。
	Validity() time.Duration
}

// Credential はゲートウェイに登録された利用者の資格情報。
type Credential struct {
	Password string
	Roles    []string
}

// DefaultCredentials は資格情報が未設定の場合の組み込みユーザー。
func DefaultCredentials() map[string]Credential {
	return map[string]Credential{
		"admin": {Password: "admin123", Roles: []string{"ADMIN", "USER"}},
		"user":  {Password: "user123", Roles: []string{"USER"}},
	}
}

// ParseCredentials は設定文字列から資格情報マップを生成する。
// 形式: "ユーザー名:パスワード:ロール1|ロール2" をカンマ区切りで並べる。
// 例: "admin:admin123:ADMIN|USER,user:user123:USER"
// 空文字列の場合はDefaultCredentialsを返す。
func ParseCredentials(spec string) (map[string]Credential, error) {
	if strings.TrimSpace(spec) == "" {
		return DefaultCredentials(), nil
	}

	creds := make(map[string]Credential)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("資格情報の形式が不正です: %q", entry)
		}

		var roles []string
		for _, role := range strings.Split(parts[2], "|") {
			role = strings.TrimSpace(role)
			if role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("資格情報にロールがありません: %q", entry)
		}

		creds[parts[0]] = Credential{Password: parts[1], Roles: roles}
	}

	return creds, nil
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	tokens      TokenServiceInterface
	credentials map[string]Credential
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(tokens TokenServiceInterface, credentials map[string]Credential) *AuthHandler {
	return &AuthHandler{
		tokens:      tokens,
		credentials: credentials,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Token     string   `json:"token"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	ExpiresIn int64    `json:"expiresIn"` // ミリ秒
}

// validateResponse はトークン検証成功時のレスポンス。
type validateResponse struct {
	Valid    bool     `json:"valid"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Login は資格情報を検証しトークンを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	cred, ok := h.credentials[req.Username]
	if !ok || cred.Password != req.Password {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	}

	tokenString, err := h.tokens.Issue(req.Username, cred.Roles)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token:     tokenString,
		Username:  req.Username,
		Roles:     cred.Roles,
		ExpiresIn: h.tokens.Validity().Milliseconds(),
	})
}

// Validate はAuthorizationヘッダーのトークンを検証する。
// POST /auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Authorizationヘッダーの形式が不正です。",
			Category: "validation",
			Action:   "Bearer形式でトークンを指定してください。",
		})
		return
	}

	identity, err := h.tokens.Verify(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(validateResponse{
		Valid:    true,
		Username: identity.Subject,
		Roles:    identity.Roles,
	})
}
