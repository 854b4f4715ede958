// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret     string
	TokenValidity time.Duration

	// Rate Limit
	RateLimitPerMinute int

	// Route Policy
	// "パターン=ロール1|ロール2" をカンマ区切りで並べた文字列。
	// 例: "/api/admin=ADMIN,/api/orders=USER|ADMIN"
	RouteRoles string

	// Gateway Users
	// "ユーザー名:パスワード:ロール1|ロール2" をカンマ区切りで並べた文字列。
	GatewayUsers string

	// Collaborators
	ProductServiceURL      string
	PaymentServiceURL      string
	NotificationServiceURL string
	CollaboratorTimeout    time.Duration
	NotifyTimeout          time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenValidity = getEnvDuration("TOKEN_VALIDITY", 24*time.Hour)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.RouteRoles = getEnvString("ROUTE_ROLES", "")
	cfg.GatewayUsers = getEnvString("GATEWAY_USERS", "")
	cfg.ProductServiceURL = getEnvString("PRODUCT_SERVICE_URL", "http://localhost:8084")
	cfg.PaymentServiceURL = getEnvString("PAYMENT_SERVICE_URL", "http://localhost:8085")
	cfg.NotificationServiceURL = getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8086")
	cfg.CollaboratorTimeout = getEnvDuration("COLLABORATOR_TIMEOUT", 5*time.Second)
	cfg.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", 2*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
