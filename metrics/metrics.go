package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	CampaignsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_created_total",
			Help: "Total number of campaigns created",
		},
	)

	CampaignRecipientsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_recipients_added_total",
			Help: "Total number of recipients attached to campaigns",
		},
	)

	ProspectsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospects_imported_total",
			Help: "Prospect bulk import entries by outcome",
		},
		[]string{"result"}, // created, updated, failed
	)

	SenderBulkItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sender_bulk_items_total",
			Help: "Sender bulk operation items by operation and outcome",
		},
		[]string{"op", "result"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"result"}, // success, invalid, inactive, locked
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementProspectsImported(result string, n int) {
	ProspectsImported.WithLabelValues(result).Add(float64(n))
}

func IncrementSenderBulk(op, result string, n int) {
	SenderBulkItems.WithLabelValues(op, result).Add(float64(n))
}

func IncrementLoginAttempt(result string) {
	LoginAttempts.WithLabelValues(result).Inc()
}
