package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics содержит метрики обращений к каталогу товаров.
type CatalogMetrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	unmatchedReplies prometheus.Counter
	inFlight         prometheus.Gauge
}

// NewCatalogMetrics регистрирует метрики в DefaultRegisterer.
func NewCatalogMetrics() *CatalogMetrics {
	return NewCatalogMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCatalogMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewCatalogMetricsWithRegisterer(registerer prometheus.Registerer) *CatalogMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CatalogMetrics{
		requests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_catalog_requests_total",
			Help: "Total number of product catalog requests by result",
		}, []string{"result"})),
		requestDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_catalog_request_duration_seconds",
			Help:    "Duration of product catalog requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"})),
		unmatchedReplies: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oms_catalog_unmatched_replies_total",
			Help: "Total number of catalog replies without a waiting request",
		})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oms_catalog_requests_in_flight",
			Help: "Number of catalog requests waiting for a reply",
		})),
	}
}

// RequestStarted отмечает начало запроса и возвращает функцию его завершения.
func (m *CatalogMetrics) RequestStarted() func(ok bool) {
	if m == nil {
		return func(bool) {}
	}
	started := time.Now()
	m.inFlight.Inc()
	return func(ok bool) {
		m.inFlight.Dec()
		result := resultLabel(ok)
		m.requests.WithLabelValues(result).Inc()
		m.requestDuration.WithLabelValues(result).Observe(time.Since(started).Seconds())
	}
}

// RecordUnmatchedReply учитывает ответ, для которого нет ожидающего запроса.
func (m *CatalogMetrics) RecordUnmatchedReply() {
	if m == nil {
		return
	}
	m.unmatchedReplies.Inc()
}
