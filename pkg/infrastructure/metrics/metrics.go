package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_provider_send_total",
			Help: "Provider send attempts by channel and result.",
		},
		[]string{"channel", "result"},
	)
	providerSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_provider_send_duration_seconds",
			Help:    "Duration of provider send calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
	domainEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_domain_events_total",
			Help: "Domain events emitted by type.",
		},
		[]string{"type"},
	)
	batchRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_batch_recipients_total",
			Help: "Bulk dispatch recipients by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_batches_total",
			Help: "Finished notification batches by terminal status.",
		},
		[]string{"status"},
	)
)
