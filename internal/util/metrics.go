package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"kind"})

	OrdersCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_orders_completed_total",
		Help: "Total number of orders finalized",
	}, []string{"kind"})

	OrdersSupersededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_orders_superseded_total",
		Help: "Total number of orders soft-deleted by a replacement",
	}, []string{"kind"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_orders_failed_total",
		Help: "Total number of rejected order operations",
	}, []string{"kind", "reason"})

	ConfirmationsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selfcare_confirmations_issued_total",
		Help: "Total number of confirmation codes issued",
	})

	ConfirmationsVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "selfcare_confirmations_verified_total",
		Help: "Total number of confirmation codes successfully verified",
	})

	ConfirmationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_confirmations_failed_total",
		Help: "Total number of failed confirmation verifications",
	}, []string{"reason"})

	SMSSendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_sms_send_total",
		Help: "Total number of SMS deliveries by outcome",
	}, []string{"status"})

	SMSSendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "selfcare_sms_send_latency_seconds",
		Help:    "Latency of SMS gateway calls",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_notifications_sent_total",
		Help: "Total number of order notification emails by outcome",
	}, []string{"status"})

	BillingRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "selfcare_billing_request_latency_seconds",
		Help:    "Latency of billing API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	CourierCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "selfcare_courier_cache_total",
		Help: "Courier status lookups by cache outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
