package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fan-out metrics
var (
	// ConnectedClients tracks the current number of admitted sessions
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewire_connected_clients",
			Help: "Current number of admitted WebSocket sessions",
		},
	)

	// BroadcastsTotal counts price updates fanned out to the registry
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_broadcasts_total",
			Help: "Total price updates broadcast to connected sessions",
		},
	)

	// DeliveryFailuresTotal counts per-session write failures during broadcast
	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_delivery_failures_total",
			Help: "Total per-session delivery failures (failed sessions are pruned)",
		},
	)

	// AuthRejectionsTotal counts admission attempts refused by the auth gate
	AuthRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_auth_rejections_total",
			Help: "Total WebSocket admissions refused due to invalid credentials",
		},
	)
)

// Listener metrics
var (
	// ListenerReconnectsTotal counts upstream subscription failures that
	// triggered the backoff/reconnect path
	ListenerReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_listener_reconnects_total",
			Help: "Total upstream listener reconnect attempts after failure",
		},
	)

	// MalformedPayloadsTotal counts discarded notification payloads
	MalformedPayloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_malformed_payloads_total",
			Help: "Total upstream payloads discarded because they failed to parse",
		},
	)

	// ListenerSubscribed reports whether the listener is currently subscribed
	ListenerSubscribed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewire_listener_subscribed",
			Help: "1 when the upstream listener is subscribed, 0 otherwise",
		},
	)
)

// Query cache metrics
var (
	// PriceCacheHitsTotal counts EOD lookups served from Redis
	PriceCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_price_cache_hits_total",
			Help: "Total end-of-day price lookups served from cache",
		},
	)

	// PriceCacheMissesTotal counts EOD lookups that fell through to Postgres
	PriceCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewire_price_cache_misses_total",
			Help: "Total end-of-day price lookups that missed the cache",
		},
	)
)
