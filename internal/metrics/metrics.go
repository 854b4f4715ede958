// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアおよび注文サービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordAuthFailure(reason string)
	RecordRateLimitRejection()
	RecordOrderCreated()
	RecordOrderConfirmed()
	RecordOrderCancelled()
	RecordOrderRefunded()
	RecordPaymentFailure()
	RecordNotificationFailure(channel string)
	RecordCollaboratorLatency(service string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	authFailures        *prometheus.CounterVec
	rateLimitRejections prometheus.Counter
	ordersCreated       prometheus.Counter
	ordersConfirmed     prometheus.Counter
	ordersCancelled     prometheus.Counter
	ordersRefunded      prometheus.Counter
	paymentFailures     prometheus.Counter
	notifyFailures      *prometheus.CounterVec
	collaboratorLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopgate_auth_failures_total",
			Help: "認証・認可の失敗数（理由別）",
		}, []string{"reason"}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_rate_limit_rejections_total",
			Help: "レート制限による拒否の合計数",
		}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_orders_created_total",
			Help: "作成された注文の合計数",
		}),
		ordersConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_orders_confirmed_total",
			Help: "確定された注文の合計数",
		}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_orders_cancelled_total",
			Help: "取消された注文の合計数",
		}),
		ordersRefunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_orders_refunded_total",
			Help: "返金された注文の合計数",
		}),
		paymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shopgate_payment_failures_total",
			Help: "決済失敗の合計数",
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopgate_notification_failures_total",
			Help: "通知送信失敗の合計数（チャネル別）",
		}, []string{"channel"}),
		collaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopgate_collaborator_latency_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.authFailures,
		c.rateLimitRejections,
		c.ordersCreated,
		c.ordersConfirmed,
		c.ordersCancelled,
		c.ordersRefunded,
		c.paymentFailures,
		c.notifyFailures,
		c.collaboratorLatency,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAuthFailure は認証・認可の失敗を理由付きで記録する。
func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// RecordRateLimitRejection はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimitRejection() {
	c.rateLimitRejections.Inc()
}

// RecordOrderCreated は注文作成を記録する。
func (c *Collector) RecordOrderCreated() {
	c.ordersCreated.Inc()
}

// RecordOrderConfirmed は注文確定を記録する。
func (c *Collector) RecordOrderConfirmed() {
	c.ordersConfirmed.Inc()
}

// RecordOrderCancelled は注文取消を記録する。
func (c *Collector) RecordOrderCancelled() {
	c.ordersCancelled.Inc()
}

// RecordOrderRefunded は注文返金を記録する。
func (c *Collector) RecordOrderRefunded() {
	c.ordersRefunded.Inc()
}

// RecordPaymentFailure は決済失敗を記録する。
func (c *Collector) RecordPaymentFailure() {
	c.paymentFailures.Inc()
}

// RecordNotificationFailure は通知送信失敗をチャネル別に記録する。
func (c *Collector) RecordNotificationFailure(channel string) {
	c.notifyFailures.WithLabelValues(channel).Inc()
}

// RecordCollaboratorLatency は外部サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordCollaboratorLatency(service string, duration time.Duration) {
	c.collaboratorLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
