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
// 認証サービスやハンドラー層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess(newUser bool)
	RecordLoginFailure(reason string)
	RecordProviderLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordTokenValidationFailure()
	RecordResourceWrite(resource string, operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	providerLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
	tokenFail       prometheus.Counter
	resourceWrites  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_login_success_total",
			Help: "ログイン成功の合計数",
		}, []string{"new_user"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_login_fail_total",
			Help: "ログイン失敗の合計数",
		}, []string{"reason"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zaiko_provider_latency_seconds",
			Help:    "LINE API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokenFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zaiko_token_validation_fail_total",
			Help: "セッショントークン検証失敗の合計数",
		}),
		resourceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zaiko_resource_writes_total",
			Help: "リソース書き込み操作の合計数",
		}, []string{"resource", "operation"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.providerLatency,
		c.httpStatus,
		c.tokenFail,
		c.resourceWrites,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(newUser bool) {
	c.loginSuccess.WithLabelValues(strconv.FormatBool(newUser)).Inc()
}

// RecordLoginFailure はログイン失敗を理由ラベル付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordProviderLatency はLINE API呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(duration time.Duration) {
	c.providerLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokenValidationFailure はセッショントークン検証失敗を記録する。
func (c *Collector) RecordTokenValidationFailure() {
	c.tokenFail.Inc()
}

// RecordResourceWrite はリソースの書き込み操作を記録する。
// resourceは"item"または"post"、operationは"create"/"update"/"delete"。
func (c *Collector) RecordResourceWrite(resource string, operation string) {
	c.resourceWrites.WithLabelValues(resource, operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
