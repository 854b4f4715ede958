package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gpark/shopgate/internal/metrics"
	"github.com/gpark/shopgate/internal/model"
)

// rateWindowDuration は固定ウィンドウの長さ。ウィンドウ境界はハードな崖であり、
// 境界をまたぐと最大2×limitのバーストを許す。これは元設計から引き継いだ
// 単純さ優先のトレードオフで、意図的に維持している。
const rateWindowDuration = time.Minute

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	RequestsPerMinute int           // クライアントIDごとの1分あたり許容リクエスト数
	CleanupInterval   time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision はレート制限の判定結果。
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// rateWindow はクライアントIDごとの固定ウィンドウカウンタ。
// count と windowStart の read-check-increment は mu により単一の論理操作となる。
type rateWindow struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	lastAccess  time.Time
}

// RateLimiter はクライアントIDごとの固定ウィンドウレート制限を管理する。
// 異なるクライアントIDのカウンタは互いにブロックせずに更新される。
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.RWMutex
	windows map[string]*rateWindow

	stopCh chan struct{}

	// now はテストで差し替え可能な時刻源。
	now func() time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		windows: make(map[string]*rateWindow),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Admit はクライアントIDの1リクエストを判定する。
// ウィンドウが存在しないか現在時刻がwindowStart+1分以降の場合はカウンタをリセットし、
// インクリメント後にcountが上限を超えていれば拒否する。
func (rl *RateLimiter) Admit(clientID string) Decision {
	win := rl.getOrCreateWindow(clientID)

	win.mu.Lock()
	defer win.mu.Unlock()

	now := rl.now()
	if now.Sub(win.windowStart) >= rateWindowDuration {
		win.count = 0
		win.windowStart = now
	}
	win.count++
	win.lastAccess = now

	resetAt := win.windowStart.Add(rateWindowDuration)
	limit := rl.config.RequestsPerMinute

	if win.count > limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - win.count, ResetAt: resetAt}
}

// Middleware はレート制限ミドルウェアを返す。
// 判定結果にかかわらず X-Rate-Limit-Limit / Remaining / Reset ヘッダーを設定する。
// 認証より先に実行されるため、クライアントIDにはリモートIPアドレスを使用する。
func (rl *RateLimiter) Middleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIPFromRequest(r)
			d := rl.Admit(clientID)

			w.Header().Set("X-Rate-Limit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-Rate-Limit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-Rate-Limit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfterSec := int(time.Until(d.ResetAt).Seconds()) + 1
				if retryAfterSec < 1 {
					retryAfterSec = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))

				if collector != nil {
					collector.RecordRateLimitRejection()
				}
				slog.Warn("rate limit exceeded",
					slog.String("client_id", clientID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitExceededError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// EntryCount は現在管理されているウィンドウのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) EntryCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.windows)
}

// getOrCreateWindow はクライアントIDのウィンドウを取得または作成する。
func (rl *RateLimiter) getOrCreateWindow(clientID string) *rateWindow {
	rl.mu.RLock()
	win, exists := rl.windows[clientID]
	rl.mu.RUnlock()

	if exists {
		return win
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// ダブルチェック
	if win, exists := rl.windows[clientID]; exists {
		return win
	}

	win = &rateWindow{
		windowStart: rl.now(),
		lastAccess:  rl.now(),
	}
	rl.windows[clientID] = win

	return win
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
// クライアントIDごとのエントリが無制限に増え続けないようにする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for clientID, win := range rl.windows {
		win.mu.Lock()
		stale := now.Sub(win.lastAccess) > ttl
		win.mu.Unlock()
		if stale {
			delete(rl.windows, clientID)
		}
	}
}

// clientIPFromRequest はリクエストからクライアントのIPアドレスを取り出す。
// プロキシ経由の場合はX-Forwarded-Forの先頭を優先する。
func clientIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
