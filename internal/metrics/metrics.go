// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type MetricsCollector interface {
	RecordSessionCreated(reused bool)
	RecordAuthRejection()
	RecordTaskMutation(operation string)
	RecordStreamFragments(count int)
	RecordStreamDuration(duration time.Duration)
	RecordUpstreamFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsCreated  *prometheus.CounterVec
	authRejections   prometheus.Counter
	taskMutations    *prometheus.CounterVec
	streamFragments  prometheus.Counter
	streamDuration   prometheus.Histogram
	upstreamFailures prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_sessions_created_total",
			Help: "セッション作成の合計数（新規発行・再利用別）",
		}, []string{"reused"}),
		authRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskchat_auth_rejections_total",
			Help: "認証拒否の合計数",
		}),
		taskMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_task_mutations_total",
			Help: "タスク変更操作の合計数（操作種別）",
		}, []string{"operation"}),
		streamFragments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskchat_stream_fragments_total",
			Help: "クライアントへ配信したストリーム断片の合計数",
		}),
		streamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskchat_stream_duration_seconds",
			Help:    "生成ストリーム1本の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		upstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskchat_upstream_failures_total",
			Help: "生成APIの失敗（アイドルタイムアウト含む）の合計数",
		}),
	}

	reg.MustRegister(
		c.sessionsCreated,
		c.authRejections,
		c.taskMutations,
		c.streamFragments,
		c.streamDuration,
		c.upstreamFailures,
	)

	return c
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated(reused bool) {
	label := "false"
	if reused {
		label = "true"
	}
	c.sessionsCreated.WithLabelValues(label).Inc()
}

// RecordAuthRejection は認証拒否を記録する。
func (c *Collector) RecordAuthRejection() {
	c.authRejections.Inc()
}

// RecordTaskMutation はタスク変更操作を記録する。
func (c *Collector) RecordTaskMutation(operation string) {
	c.taskMutations.WithLabelValues(operation).Inc()
}

// RecordStreamFragments は配信した断片数を記録する。
func (c *Collector) RecordStreamFragments(count int) {
	c.streamFragments.Add(float64(count))
}

// RecordStreamDuration はストリーム1本の所要時間を記録する。
func (c *Collector) RecordStreamDuration(duration time.Duration) {
	c.streamDuration.Observe(duration.Seconds())
}

// RecordUpstreamFailure は生成APIの失敗を記録する。
func (c *Collector) RecordUpstreamFailure() {
	c.upstreamFailures.Inc()
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

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
