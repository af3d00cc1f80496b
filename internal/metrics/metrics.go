// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// swipe.Recorder、receipt.Recorder、およびインポートワーカーの記録先を兼ねる。
type Collector struct {
	swipes         *prometheus.CounterVec
	sinkOutcomes   *prometheus.CounterVec
	receipts       *prometheus.CounterVec
	activeSessions prometheus.Gauge

	fetchSuccess  prometheus.Counter
	fetchFail     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	itemsImported prometheus.Counter
	itemsDeleted  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		swipes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsswiper_swipes_total",
			Help: "方向別のコミットされたスワイプ数",
		}, []string{"direction"}),
		sinkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsswiper_action_sink_outcomes_total",
			Help: "結果別のActionSink呼び出し数",
		}, []string{"outcome"}),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsswiper_receipts_total",
			Help: "結果別のレシート出力数",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsswiper_active_swipe_sessions",
			Help: "接続中のスワイプセッション数",
		}),
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsswiper_feed_fetch_success_total",
			Help: "フィードフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsswiper_feed_fetch_fail_total",
			Help: "理由別のフィードフェッチ失敗数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsswiper_feed_http_status_total",
			Help: "フィードフェッチのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsswiper_feed_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsswiper_items_imported_total",
			Help: "フィードから取り込んだ記事の合計数",
		}),
		itemsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsswiper_items_deleted_total",
			Help: "保持期間切れで削除した記事の合計数",
		}),
	}

	reg.MustRegister(
		c.swipes,
		c.sinkOutcomes,
		c.receipts,
		c.activeSessions,
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.itemsImported,
		c.itemsDeleted,
	)

	return c
}

// RecordSwipe はコミットされたスワイプを記録する。
func (c *Collector) RecordSwipe(direction string) {
	c.swipes.WithLabelValues(direction).Inc()
}

// RecordSinkOutcome はActionSinkの結果を記録する。
func (c *Collector) RecordSinkOutcome(outcome string) {
	c.sinkOutcomes.WithLabelValues(outcome).Inc()
}

// RecordReceipt はレシート出力の結果を記録する。
func (c *Collector) RecordReceipt(outcome string) {
	c.receipts.WithLabelValues(outcome).Inc()
}

// SessionStarted はスワイプセッションの開始を記録する。
func (c *Collector) SessionStarted() {
	c.activeSessions.Inc()
}

// SessionEnded はスワイプセッションの終了を記録する。
func (c *Collector) SessionEnded() {
	c.activeSessions.Dec()
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordItemsImported は取り込んだ記事数を記録する。
func (c *Collector) RecordItemsImported(count int) {
	c.itemsImported.Add(float64(count))
}

// RecordItemsDeleted は削除した記事数を記録する。
func (c *Collector) RecordItemsDeleted(count int64) {
	c.itemsDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントのみを提供するHTTPハンドラーを返す。
// APIサーバーを持たないworkerプロセスで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
