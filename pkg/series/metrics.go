// 文件: pkg/series/metrics.go
// Prometheus 指标
//
// 每个 Builder 持有自己的 Registry，测试里可以反复创建

package series

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 构建指标
type Metrics struct {
	registry *prometheus.Registry

	units    *prometheus.CounterVec   // 按结果统计的单元数
	rolls    *prometheus.CounterVec   // 展期次数
	builds   *prometheus.CounterVec   // 构建次数 (ok / failed)
	duration *prometheus.HistogramVec // 单品种耗时
}

// NewMetrics 创建并注册
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overnight",
			Name:      "units_total",
			Help:      "Resolved (symbol, trade_date) units by outcome.",
		}, []string{"symbol", "outcome"}),
		rolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overnight",
			Name:      "rolls_total",
			Help:      "Active contract changes between consecutive resolved dates.",
		}, []string{"symbol"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overnight",
			Name:      "builds_total",
			Help:      "Series builds by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "overnight",
			Name:      "symbol_build_seconds",
			Help:      "Time to build one symbol's series.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"symbol"}),
	}
	m.registry.MustRegister(m.units, m.rolls, m.builds, m.duration)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 测试用
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeUnit(symbol string, rec *Record) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if rec.IsGap() {
		outcome = string(rec.Gap)
	}
	m.units.WithLabelValues(symbol, outcome).Inc()
	if rec.Roll {
		m.rolls.WithLabelValues(symbol).Inc()
	}
}

func (m *Metrics) observeBuild(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.builds.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSymbol(symbol string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(symbol).Observe(seconds)
}
