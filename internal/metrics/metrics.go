package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
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

	// CommissionsTotal counts per-level distribution outcomes:
	// paid, already_processed, skipped or failed.
	CommissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commissions_total",
			Help: "Referral commission outcomes by level",
		},
		[]string{"level", "outcome"},
	)

	CommissionAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_commission_amount_total",
			Help: "Sum of referral commissions credited, by level",
		},
		[]string{"level"},
	)

	WithdrawalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawal_requests_total",
			Help: "Withdrawal requests by result",
		},
		[]string{"result"},
	)

	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions by profile",
		},
		[]string{"profile", "decision"},
	)
)
