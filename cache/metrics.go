package cache

// metrics.go is a thin abstraction over Prometheus, mirroring the
// teacher's pkg/metrics.go noop/prom split almost exactly: when the
// caller supplies a *prometheus.Registry via WithMetrics, labeled counters
// are registered and updated; otherwise a no-op sink is used and the hot
// path pays nothing. Relabeled for the generic layer chain: hits/misses
// still apply to any cache, but "arena_bytes"/"arena_rotations" become
// "evictions"/"expirations"/"promotions"/"shard_growth", since there is no
// arena here to report on.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal interface Cache and shard use; not exposed
// outside the package, same as the teacher's.
type metricsSink interface {
	incHit(shard int)
	incMiss(shard int)
	incEviction(shard int)
	incExpiration(shard int)
	incPromotion(shard int)
	incShardGrowth(shard int)
}

type noopMetrics struct{}

func (noopMetrics) incHit(int)         {}
func (noopMetrics) incMiss(int)        {}
func (noopMetrics) incEviction(int)    {}
func (noopMetrics) incExpiration(int)  {}
func (noopMetrics) incPromotion(int)   {}
func (noopMetrics) incShardGrowth(int) {}

type promMetrics struct {
	hits        *prometheus.CounterVec
	misses      *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	expirations *prometheus.CounterVec
	promotions  *prometheus.CounterVec
	growths     *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}
	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "hits_total", Help: "Number of cache hits.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "misses_total", Help: "Number of cache misses.",
		}, label),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "evictions_total", Help: "Number of entries evicted by capacity pressure.",
		}, label),
		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "expirations_total", Help: "Number of entries removed lazily because they were found expired on read.",
		}, label),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "promotions_total", Help: "Number of generational g0->g1 promotions.",
		}, label),
		growths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "layercache", Name: "shard_growth_total", Help: "Number of times a shard's bucket table grew during iteration.",
		}, label),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.expirations, pm.promotions, pm.growths)
	return pm
}

func (m *promMetrics) incHit(shard int)  { m.hits.WithLabelValues(strconv.Itoa(shard)).Inc() }
func (m *promMetrics) incMiss(shard int) { m.misses.WithLabelValues(strconv.Itoa(shard)).Inc() }
func (m *promMetrics) incEviction(shard int) {
	m.evictions.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incExpiration(shard int) {
	m.expirations.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incPromotion(shard int) {
	m.promotions.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incShardGrowth(shard int) {
	m.growths.WithLabelValues(strconv.Itoa(shard)).Inc()
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
