package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WDQSRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_wdqs_requests_total",
		Help: "Total WDQS queries issued",
	})
	WDQSRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_wdqs_retries_total",
		Help: "Total WDQS retry attempts after transient errors",
	})
	WDQSRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_wdqs_rate_limited_total",
		Help: "Total WDQS 429 responses",
	})
	WDQSFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_wdqs_fail_total",
		Help: "Total WDQS queries that failed terminally",
	})
	WDQSDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoenrich_wdqs_duration_ms",
		Help:    "WDQS query duration in milliseconds",
		Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
	RowsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_rows_skipped_total",
		Help: "Total response rows dropped for missing required bindings",
	})
	CoordCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_coord_cache_hits_total",
		Help: "Total coordinate cache hits (memory tier)",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_redis_hits_total",
		Help: "Total coordinate cache hits (redis tier)",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_redis_misses_total",
		Help: "Total coordinate cache misses (redis tier)",
	})
	SnapshotLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_snapshot_loads_total",
		Help: "Total batches served from the snapshot store",
	})
	SnapshotSavesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoenrich_snapshot_saves_total",
		Help: "Total batch snapshots persisted",
	})
	ResolverPlacesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoenrich_resolver_places_total",
		Help: "Places handled by the parent-fallback resolver by outcome",
	}, []string{"source"})
	StatusTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoenrich_status_total",
		Help: "Final geo status distribution",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(WDQSRequestsTotal)
	prometheus.MustRegister(WDQSRetriesTotal)
	prometheus.MustRegister(WDQSRateLimitedTotal)
	prometheus.MustRegister(WDQSFailTotal)
	prometheus.MustRegister(WDQSDurationMs)
	prometheus.MustRegister(RowsSkippedTotal)
	prometheus.MustRegister(CoordCacheHitsTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(SnapshotLoadsTotal)
	prometheus.MustRegister(SnapshotSavesTotal)
	prometheus.MustRegister(ResolverPlacesTotal)
	prometheus.MustRegister(StatusTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：批处理运行期间可选暴露 /metrics 供抓取；由主入口按 METRICS_ADDR 挂载。
func Handler() http.Handler { return promhttp.Handler() }
