// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/heredeirxs/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordNewsFetchSuccess()
	RecordNewsFetchFailure(reason string)
	RecordNewsParseFailure()
	RecordNewsFetchLatency(duration time.Duration)
	RecordNewsItemsUpserted(count int)
	RecordHTTPStatus(statusCode int)
	RecordProfileSync(outcome model.Outcome)
	RecordRedirect(trigger, target string)
	RecordWeatherLookup(source string)
}

// 天気の取得元ラベル
const (
	WeatherSourceMemory      = "memory"
	WeatherSourcePersisted   = "persisted"
	WeatherSourceUpstream    = "upstream"
	WeatherSourcePlaceholder = "placeholder"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	newsFetchSuccess  prometheus.Counter
	newsFetchFail     *prometheus.CounterVec
	newsParseFail     prometheus.Counter
	newsFetchLatency  prometheus.Histogram
	newsItemsUpserted prometheus.Counter
	httpStatus        *prometheus.CounterVec
	profileSync       *prometheus.CounterVec
	redirects         *prometheus.CounterVec
	weatherLookups    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		newsFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heredeirxs_news_fetch_success_total",
			Help: "ニュースフィード取得成功の合計数",
		}),
		newsFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heredeirxs_news_fetch_fail_total",
			Help: "ニュースフィード取得失敗の合計数",
		}, []string{"reason"}),
		newsParseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heredeirxs_news_parse_fail_total",
			Help: "ニュースフィードパース失敗の合計数",
		}),
		newsFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "heredeirxs_news_fetch_latency_seconds",
			Help:    "ニュースフィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		newsItemsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heredeirxs_news_items_upserted_total",
			Help: "アップサートされたニュース記事の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heredeirxs_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		profileSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heredeirxs_profile_sync_total",
			Help: "プロフィール同期の結果別の合計数",
		}, []string{"outcome"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heredeirxs_redirects_total",
			Help: "ルート整合によるリダイレクトの合計数",
		}, []string{"trigger", "target"}),
		weatherLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "heredeirxs_weather_lookups_total",
			Help: "取得元別の天気参照数",
		}, []string{"source"}),
	}

	reg.MustRegister(
		c.newsFetchSuccess,
		c.newsFetchFail,
		c.newsParseFail,
		c.newsFetchLatency,
		c.newsItemsUpserted,
		c.httpStatus,
		c.profileSync,
		c.redirects,
		c.weatherLookups,
	)

	return c
}

// RecordNewsFetchSuccess はフィード取得成功を記録する。
func (c *Collector) RecordNewsFetchSuccess() {
	c.newsFetchSuccess.Inc()
}

// RecordNewsFetchFailure はフィード取得失敗を記録する。
func (c *Collector) RecordNewsFetchFailure(reason string) {
	c.newsFetchFail.WithLabelValues(reason).Inc()
}

// RecordNewsParseFailure はパース失敗を記録する。
func (c *Collector) RecordNewsParseFailure() {
	c.newsParseFail.Inc()
}

// RecordNewsFetchLatency はフィード取得のレイテンシを記録する。
func (c *Collector) RecordNewsFetchLatency(duration time.Duration) {
	c.newsFetchLatency.Observe(duration.Seconds())
}

// RecordNewsItemsUpserted はアップサートされた記事数を記録する。
func (c *Collector) RecordNewsItemsUpserted(count int) {
	c.newsItemsUpserted.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProfileSync はプロフィール同期の結果を記録する。
func (c *Collector) RecordProfileSync(outcome model.Outcome) {
	c.profileSync.WithLabelValues(string(outcome)).Inc()
}

// RecordRedirect はリダイレクトを記録する。
func (c *Collector) RecordRedirect(trigger, target string) {
	c.redirects.WithLabelValues(trigger, target).Inc()
}

// RecordWeatherLookup は天気の取得元を記録する。
func (c *Collector) RecordWeatherLookup(source string) {
	c.weatherLookups.WithLabelValues(source).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// スクレイプ自体の失敗はHTTP 500として返し、収集済みの値は捨てない。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// SetupMetricsRoute はワーカー用に/metricsと/healthzを提供するHTTPハンドラーを返す。
// ワーカーはDBを介した処理しか持たないため、/healthzはプロセスの生存のみを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
