package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_credits_total",
			Help: "Referral credit attempts by rule and outcome",
		},
		[]string{"rule", "status"},
	)

	PointsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_points_awarded_total",
			Help: "Points credited by rule",
		},
		[]string{"rule"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_settlements_total",
			Help: "Payout settlements and reverts",
		},
		[]string{"action"},
	)

	OutboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_deliveries_total",
			Help: "Outbox delivery attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_feed_clients",
			Help: "Connected live feed clients",
		},
	)
)
