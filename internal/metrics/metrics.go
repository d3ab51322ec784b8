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
// 集約ゲートウェイやサービス層、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordSourceSuccess(source string)
	RecordSourceFailure(source string)
	RecordSourceLatency(source string, duration time.Duration)
	RecordJobsIngested(count int)
	RecordInteractionRecorded(status string)
	RecordDocumentExported(format string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sourceRequests       *prometheus.CounterVec
	sourceLatency        *prometheus.HistogramVec
	jobsIngested         prometheus.Counter
	interactionsRecorded *prometheus.CounterVec
	documentsExported    *prometheus.CounterVec
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_source_requests_total",
			Help: "求人ソース呼び出しの結果別の合計数",
		}, []string{"source", "result"}),
		sourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobtrail_source_latency_seconds",
			Help:    "求人ソース呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		jobsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_jobs_ingested_total",
			Help: "カタログに取り込まれた求人の合計数",
		}),
		interactionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_interactions_recorded_total",
			Help: "新規に記録されたインタラクションのステータス別合計数",
		}, []string{"status"}),
		documentsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_documents_exported_total",
			Help: "エクスポートされたドキュメントの形式別合計数",
		}, []string{"format"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtrail_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sourceRequests,
		c.sourceLatency,
		c.jobsIngested,
		c.interactionsRecorded,
		c.documentsExported,
		c.httpStatus,
	)

	return c
}

// RecordSourceSuccess は求人ソース呼び出しの成功を記録する。
func (c *Collector) RecordSourceSuccess(source string) {
	c.sourceRequests.WithLabelValues(source, "success").Inc()
}

// RecordSourceFailure は求人ソース呼び出しの失敗を記録する。
func (c *Collector) RecordSourceFailure(source string) {
	c.sourceRequests.WithLabelValues(source, "failure").Inc()
}

// RecordSourceLatency は求人ソース呼び出しのレイテンシを記録する。
func (c *Collector) RecordSourceLatency(source string, duration time.Duration) {
	c.sourceLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordJobsIngested は取り込まれた求人数を記録する。
func (c *Collector) RecordJobsIngested(count int) {
	c.jobsIngested.Add(float64(count))
}

// RecordInteractionRecorded は新規インタラクションを記録する。
func (c *Collector) RecordInteractionRecorded(status string) {
	c.interactionsRecorded.WithLabelValues(status).Inc()
}

// RecordDocumentExported はドキュメントのエクスポートを記録する。
func (c *Collector) RecordDocumentExported(format string) {
	c.documentsExported.WithLabelValues(format).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わないコマンドやテストで使用する。
type Nop struct{}

func (Nop) RecordSourceSuccess(string)                {}
func (Nop) RecordSourceFailure(string)                {}
func (Nop) RecordSourceLatency(string, time.Duration) {}
func (Nop) RecordJobsIngested(int)                    {}
func (Nop) RecordInteractionRecorded(string)          {}
func (Nop) RecordDocumentExported(string)             {}
func (Nop) RecordHTTPStatus(int)                      {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
