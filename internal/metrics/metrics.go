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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordSwapCreated()
	RecordSwapTransition(from, to string)
	RecordFeedbackSubmitted(rating int)
	RecordRatingCacheLookup(hit bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	swapsCreated      prometheus.Counter
	swapTransitions   *prometheus.CounterVec
	feedbackSubmitted *prometheus.CounterVec
	ratingCache       *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		swapsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skillswap_swap_requests_created_total",
			Help: "作成されたスワップリクエストの合計数",
		}),
		swapTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_swap_transitions_total",
			Help: "スワップリクエストのステータス遷移数",
		}, []string{"from", "to"}),
		feedbackSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_feedback_submitted_total",
			Help: "評価値別の投稿されたフィードバック数",
		}, []string{"rating"}),
		ratingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_rating_cache_lookups_total",
			Help: "評価集計キャッシュの参照結果",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillswap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillswap_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.swapsCreated,
		c.swapTransitions,
		c.feedbackSubmitted,
		c.ratingCache,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSwapCreated はスワップリクエストの作成を記録する。
func (c *Collector) RecordSwapCreated() {
	c.swapsCreated.Inc()
}

// RecordSwapTransition はステータス遷移を記録する。
func (c *Collector) RecordSwapTransition(from, to string) {
	c.swapTransitions.WithLabelValues(from, to).Inc()
}

// RecordFeedbackSubmitted はフィードバック投稿を記録する。
func (c *Collector) RecordFeedbackSubmitted(rating int) {
	c.feedbackSubmitted.WithLabelValues(strconv.Itoa(rating)).Inc()
}

// RecordRatingCacheLookup は評価集計キャッシュのヒット/ミスを記録する。
func (c *Collector) RecordRatingCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.ratingCache.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordSwapCreated()                   {}
func (Nop) RecordSwapTransition(from, to string) {}
func (Nop) RecordFeedbackSubmitted(rating int)   {}
func (Nop) RecordRatingCacheLookup(hit bool)     {}
func (Nop) RecordHTTPStatus(statusCode int)      {}
func (Nop) RecordRequestLatency(d time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
