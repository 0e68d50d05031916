// Package metrics holds the checkout counters exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Payment mismatch reasons.
const (
	MismatchStatus    = "status"
	MismatchCurrency  = "currency"
	MismatchAmount    = "amount"
	MismatchReference = "reference"
	MismatchReused    = "reused"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Orders placed.",
	})

	OrderValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_total_cents",
		Help:    "Total price of placed orders in cents.",
		Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
	})

	PaymentsCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_payments_captured_total",
		Help: "Orders moved to paid by a capture.",
	})

	PaymentMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_payment_mismatches_total",
		Help: "Captures rejected because the gateway disagreed with the order.",
	}, []string{"reason"})

	OrdersDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_delivered_total",
		Help: "Orders marked delivered.",
	})

	ReviewsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_reviews_submitted_total",
		Help: "Reviews accepted.",
	})

	CartCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_commands_total",
		Help: "Cart commands applied, by command and outcome.",
	}, []string{"command", "outcome"})
)
