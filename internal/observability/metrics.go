// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the accounts service counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates the service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_requests_total",
				Help: "Total number of API requests by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounts_request_duration_seconds",
				Help:    "API request latency by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_notifications_total",
				Help: "Total number of notifications by kind and delivery result",
			},
			[]string{"kind", "result"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.NotificationsTotal)
	return m
}

// ObserveRequest records one finished API request.
func (m *Metrics) ObserveRequest(operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordNotification counts one notification outcome.
func (m *Metrics) RecordNotification(kind, result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, result).Inc()
}
