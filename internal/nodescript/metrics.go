package nodescript

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks compile and evaluation activity. A nil *Metrics records
// nothing.
type Metrics struct {
	Compilations    prometheus.Counter
	CompileErrors   *prometheus.CounterVec
	CompileDuration prometheus.Histogram
	Evaluations     prometheus.Counter
	MemoHits        prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// NewMetrics creates and registers engine metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.Compilations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "engine",
		Name:      "compilations_total",
		Help:      "Total number of successful unit compilations",
	})

	m.CompileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "engine",
		Name:      "compile_errors_total",
		Help:      "Total number of rejected compilations by error code",
	}, []string{"code"})

	m.CompileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nodescript",
		Subsystem: "engine",
		Name:      "compile_duration_seconds",
		Help:      "Unit compilation latency in seconds",
		Buckets:   prometheus.DefBuckets,
	})

	m.Evaluations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Total number of evaluation requests",
	})

	m.MemoHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "engine",
		Name:      "memo_hits_total",
		Help:      "Total number of attribute values served from the memo table",
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of result cache hits",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nodescript",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of result cache misses",
	})

	registry.MustRegister(
		m.Compilations,
		m.CompileErrors,
		m.CompileDuration,
		m.Evaluations,
		m.MemoHits,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

func (m *Metrics) recordCompile(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompileDuration.Observe(duration.Seconds())
	if err == nil {
		m.Compilations.Inc()
		return
	}

	code := "unknown"
	if compileErr, ok := err.(*CompileError); ok {
		code = compileErr.Code.String()
	}
	m.CompileErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) evaluation() {
	if m != nil {
		m.Evaluations.Inc()
	}
}

func (m *Metrics) memoHit() {
	if m != nil {
		m.MemoHits.Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) cacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
