// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lara_auth"

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordLogout()
	RecordCSRFRejection(reason string)
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordSessionsPruned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	logouts        prometheus.Counter
	csrfRejections *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	httpLatency    prometheus.Histogram
	sessionsPruned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "ユーザー登録の結果別の合計数",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "ログイン試行の結果別の合計数",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "ログアウトの合計数",
		}),
		csrfRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csrf_rejections_total",
			Help:      "CSRF検証で拒否されたリクエストの理由別の合計数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_status_total",
			Help:      "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "リクエスト処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_pruned_total",
			Help:      "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.logouts,
		c.csrfRejections,
		c.httpStatus,
		c.httpLatency,
		c.sessionsPruned,
	)

	return c
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordCSRFRejection はCSRF検証による拒否を記録する。
func (c *Collector) RecordCSRFRejection(reason string) {
	c.csrfRejections.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest はレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordSessionsPruned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPruned(count int64) {
	c.sessionsPruned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
