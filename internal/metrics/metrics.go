package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results recorded by DeliveriesTotal.
const (
	ResultDelivered  = "delivered"
	ResultMalformed  = "malformed"
	ResultDuplicate  = "duplicate"
	ResultFetchError = "fetch_error"
)

var (
	// Rule directory metrics
	MailboxesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtap_mailboxes_loaded",
			Help: "Number of recipients resolved from receipt rule sets",
		},
	)

	RuleSetErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtap_rule_set_errors_total",
			Help: "Total number of receipt rule sets that could not be loaded",
		},
	)

	// Monitor lifecycle metrics
	MonitorsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtap_monitors_active",
			Help: "Number of recipients currently monitored",
		},
	)

	ProvisionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtap_provision_errors_total",
			Help: "Total number of failed provisioning or teardown steps",
		},
		[]string{"step"},
	)

	// Poll metrics
	ReceiveCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtap_receive_calls_total",
			Help: "Total number of queue receive calls",
		},
		[]string{"status"},
	)

	PollWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtap_poll_wait_seconds_total",
			Help: "Total long-poll wait budget consumed",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtap_deliveries_total",
			Help: "Total number of received notifications by result",
		},
		[]string{"result"},
	)

	ObjectBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtap_object_bytes_total",
			Help: "Total bytes of email content fetched from storage",
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailtap_fetch_duration_seconds",
			Help:    "Duration of stored email fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Delivery event metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtap_events_published_total",
			Help: "Total number of delivery events published",
		},
		[]string{"status"},
	)
)
