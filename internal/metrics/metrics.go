// Package metrics 提供Prometheus监控指标
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kebiao/kebiao/pkg/validator"
)

const namespace = "kebiao"

// Metrics 排课服务指标
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration    *prometheus.HistogramVec
	httpTotal       *prometheus.CounterVec
	genDuration     *prometheus.HistogramVec
	genTotal        *prometheus.CounterVec
	placedSlots     prometheus.Gauge
	unplacedUnits   prometheus.Gauge
	activeConflicts *prometheus.GaugeVec
	resolutions     *prometheus.CounterVec
}

// New 创建并注册指标
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求延迟",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP请求总数",
		}, []string{"method", "path", "status"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "课表生成耗时",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"outcome"}),
		genTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "课表生成次数",
		}, []string{"outcome"}),
		placedSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_generation_placed_entries",
			Help:      "最近一次生成安排的条目数",
		}),
		unplacedUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_generation_unplaced_units",
			Help:      "最近一次生成未能安排的课时单元数",
		}),
		activeConflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conflicts",
			Help:      "当前未处理的冲突数",
		}, []string{"type"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "冲突解决操作次数",
		}, []string{"action", "outcome"}),
	}

	registry.MustRegister(
		m.httpDuration, m.httpTotal,
		m.genDuration, m.genTotal, m.placedSlots, m.unplacedUnits,
		m.activeConflicts, m.resolutions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// RegisterDB 注册数据库连接池指标
func (m *Metrics) RegisterDB(db *sql.DB, name string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// Registry 返回注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// ObserveGeneration 记录一次生成
func (m *Metrics) ObserveGeneration(outcome string, duration time.Duration, placed, unplaced int) {
	m.genTotal.WithLabelValues(outcome).Inc()
	m.genDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	switch outcome {
	case "success", "partial":
		m.placedSlots.Set(float64(placed))
		m.unplacedUnits.Set(float64(unplaced))
	}
}

// SetActiveConflicts 更新各类型未处理冲突数，缺失的类型置 0
func (m *Metrics) SetActiveConflicts(byType map[string]int) {
	for _, t := range validator.ConflictTypes() {
		m.activeConflicts.WithLabelValues(string(t)).Set(float64(byType[string(t)]))
	}
}

// ObserveResolution 记录一次解决操作
func (m *Metrics) ObserveResolution(action, outcome string) {
	m.resolutions.WithLabelValues(action, outcome).Inc()
}

// ObserveHTTPRequest 记录 HTTP 请求
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, code).Inc()
}

// Middleware gin 请求指标中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
