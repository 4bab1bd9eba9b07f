package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// DeliveryTransitions counts delivery engine state changes by kind.
	DeliveryTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_transitions_total",
			Help: "Delivery engine transitions (created, reused, assigned, deleted, completed)",
		},
		[]string{"transition"},
	)

	LocationPings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_location_pings_total",
			Help: "Location pings by result",
		},
		[]string{"result"},
	)

	TrackingSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_sessions_total",
			Help: "Tracking session starts and stops",
		},
		[]string{"action"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_clients",
			Help: "Connected realtime dashboard clients",
		},
	)

	// RealtimeMessages counts fan-out results per subscriber: sent or dropped.
	RealtimeMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_total",
			Help: "Realtime messages handed to subscribers",
		},
		[]string{"type", "result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_events_published_total",
			Help: "Domain events published to the message broker",
		},
		[]string{"type", "result"},
	)
)
