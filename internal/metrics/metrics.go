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
// サービス層・外部クライアント・ワーカーから利用する。
type MetricsCollector interface {
	RecordLogin(provider string, outcome string)
	RecordRegister(provider string, outcome string)
	RecordProfileSync(outcome string)
	RecordUpstreamStatus(provider string, statusCode int)
	RecordUpstreamLatency(provider string, duration time.Duration)
	RecordCartMutation(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginTotal       *prometheus.CounterVec
	registerTotal    *prometheus.CounterVec
	profileSyncTotal *prometheus.CounterVec
	upstreamStatus   *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	cartMutation     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_provider_login_total",
			Help: "プロバイダー別ログイン試行の合計数",
		}, []string{"provider", "outcome"}),
		registerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_provider_register_total",
			Help: "プロバイダー別登録試行の合計数",
		}, []string{"provider", "outcome"}),
		profileSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_profile_sync_total",
			Help: "プロファイル同期処理の結果別合計数",
		}, []string{"outcome"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_upstream_http_status_total",
			Help: "外部プロバイダーAPIのHTTPステータスコード別レスポンス数",
		}, []string{"provider", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopfront_upstream_latency_seconds",
			Help:    "外部プロバイダーAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		cartMutation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopfront_cart_mutation_total",
			Help: "カート操作の種別別合計数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.loginTotal,
		c.registerTotal,
		c.profileSyncTotal,
		c.upstreamStatus,
		c.upstreamLatency,
		c.cartMutation,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(provider string, outcome string) {
	c.loginTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordRegister は登録試行の結果を記録する。
func (c *Collector) RecordRegister(provider string, outcome string) {
	c.registerTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordProfileSync はプロファイル同期の結果を記録する。
func (c *Collector) RecordProfileSync(outcome string) {
	c.profileSyncTotal.WithLabelValues(outcome).Inc()
}

// RecordUpstreamStatus は外部APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(provider string, statusCode int) {
	c.upstreamStatus.WithLabelValues(provider, strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(provider string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCartMutation はカート操作を記録する。
func (c *Collector) RecordCartMutation(operation string) {
	c.cartMutation.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
