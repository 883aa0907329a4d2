package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serviceMetrics holds the Prometheus collectors for verifications
type serviceMetrics struct {
	verifications     *prometheus.CounterVec
	duration          prometheus.Histogram
	processorFailures *prometheus.CounterVec
	lookupFailures    *prometheus.CounterVec
	jobs              *prometheus.CounterVec
}

// Registered once per process so tests can build many services.
var (
	metricsInstance *serviceMetrics
	metricsOnce     sync.Once
	metricsRegistry = prometheus.DefaultRegisterer
)

func newServiceMetrics() *serviceMetrics {
	metricsOnce.Do(func() {
		factory := promauto.With(metricsRegistry)
		metricsInstance = &serviceMetrics{
			verifications: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "mediscan_verifications_total",
				Help: "Verifications completed, by verdict status and risk level",
			}, []string{"status", "risk_level"}),
			duration: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "mediscan_verification_duration_seconds",
				Help:    "Time from evidence to verdict, lookups included",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
			processorFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "mediscan_processor_failures_total",
				Help: "Image processor calls that returned an error",
			}, []string{"processor"}),
			lookupFailures: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "mediscan_lookup_failures_total",
				Help: "Registry and regulator lookups that failed and were treated as not found",
			}, []string{"source"}),
			jobs: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "mediscan_verification_jobs_total",
				Help: "Async image verification jobs, by final job status",
			}, []string{"status"}),
		}
	})
	return metricsInstance
}
