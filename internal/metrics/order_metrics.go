package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// OrderMetrics содержит метрики операций над заказами.
type OrderMetrics struct {
	ordersCreated   *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	operationLength *prometheus.HistogramVec
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of order create attempts by result",
		}, []string{"result"})),
		statusChanges: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oms_order_status_changes_total",
			Help: "Total number of applied order status changes by target status",
		}, []string{"status"})),
		operationLength: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oms_order_operation_duration_seconds",
			Help:    "Duration of order service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"})),
	}
}

// RecordOrderCreated учитывает попытку создания заказа.
func (m *OrderMetrics) RecordOrderCreated(ok bool) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordStatusChange учитывает применённую смену статуса.
func (m *OrderMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// ObserveOperation записывает длительность операции сервиса.
func (m *OrderMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationLength.WithLabelValues(operation).Observe(duration.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
