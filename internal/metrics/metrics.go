// Package metrics holds the Prometheus collectors shared by the matching,
// chat and relay layers. They register on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "muzz"

// Delivery paths recorded by DeliveriesTotal.
const (
	DeliveryLocal     = "local"
	DeliveryForwarded = "forwarded"
	DeliveryOffline   = "offline"
	DeliveryDropped   = "dropped"
)

var (
	// DecisionsTotal counts recorded decisions by action
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matching",
		Name:      "decisions_total",
		Help:      "Decisions recorded by action (like, skip)",
	}, []string{"action"})

	// MatchesCreatedTotal counts matches created (not re-read)
	MatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matching",
		Name:      "matches_created_total",
		Help:      "Matches created from mutual likes",
	})

	// MessagesSentTotal counts persisted chat messages
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Chat messages persisted",
	})

	// DeliveriesTotal counts message frames by delivery path
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "deliveries_total",
		Help:      "Real-time deliveries by path (local, forwarded, offline, dropped)",
	}, []string{"path"})

	// ActiveConnections tracks registered live connections on this instance
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "active_connections",
		Help:      "Live connections bound to a user",
	})

	// ProtocolErrorsTotal counts dropped relay frames by reason
	ProtocolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "protocol_errors_total",
		Help:      "Relay frames rejected by reason",
	}, []string{"reason"})

	// HTTPRequestDuration tracks API latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
