// Package prom exports Prometheus metrics for dispatched operations and cache events.
//
//	m := prom.New(prometheus.DefaultRegisterer)
//	med, _ := querycache.New(querycache.Options{
//	    Resolver:  c,
//	    Decorator: m,
//	    Hooks:     m,
//	})
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/querycache"
)

// Metrics is both a Decorator (operation counts and latency) and Hooks (cache events).
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	hits       prometheus.Counter
	misses     prometheus.Counter
	selfHeals  *prometheus.CounterVec
	rejected   prometheus.Counter
}

var (
	_ querycache.Decorator = (*Metrics)(nil)
	_ querycache.Hooks     = (*Metrics)(nil)
)

// New registers the collectors with reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "querycache_operations_total",
			Help: "Total number of dispatched operations by outcome",
		}, []string{"op", "status"}), // status: "ok", "error"
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querycache_operation_duration_seconds",
			Help:    "Duration of dispatched operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "querycache_cache_hits_total",
			Help: "Total number of cached query hits",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "querycache_cache_misses_total",
			Help: "Total number of cached query misses",
		}),
		selfHeals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "querycache_self_heals_total",
			Help: "Total number of undecodable entries removed",
		}, []string{"reason"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "querycache_set_rejected_total",
			Help: "Total number of writes refused by the backend",
		}),
	}
}

func (m *Metrics) Decorate(ctx context.Context, op string, next func(context.Context) error) error {
	start := time.Now()
	err := next(ctx)
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	return err
}

func (m *Metrics) SelfHeal(_, reason string) { m.selfHeals.WithLabelValues(reason).Inc() }
func (m *Metrics) SetRejected(string)        { m.rejected.Inc() }
func (m *Metrics) CacheHit(string)           { m.hits.Inc() }
func (m *Metrics) CacheMiss(string)          { m.misses.Inc() }
