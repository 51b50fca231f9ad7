// Package metrics exposes Prometheus metrics for the IMAP gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imapgw_http_requests_total",
		Help: "Total HTTP requests by endpoint and status code",
	}, []string{"endpoint", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imapgw_http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	}, []string{"endpoint"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imapgw_http_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})

	// IMAP Session Metrics
	Sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imapgw_imap_sessions_total",
		Help: "Total IMAP sessions opened, by result",
	}, []string{"result"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imapgw_imap_session_duration_seconds",
		Help:    "Lifetime of one IMAP session (connect to logout)",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	MessagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imapgw_messages_fetched_total",
		Help: "Total messages fetched from the upstream server",
	})

	// Parsing Metrics
	MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imapgw_messages_skipped_total",
		Help: "Total messages skipped during list operations",
	}, []string{"reason"})

	ParseFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imapgw_parse_failures_total",
		Help: "Total MIME parse failures by scope (message, part)",
	}, []string{"scope"})

	// Attachment Metrics
	AttachmentsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imapgw_attachments_served_total",
		Help: "Total attachments downloaded through the gateway",
	})

	AttachmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imapgw_attachment_bytes_total",
		Help: "Total attachment bytes served",
	})
)

// RecordHTTP records one completed HTTP request.
func RecordHTTP(endpoint, status string, seconds float64) {
	HTTPRequests.WithLabelValues(endpoint, status).Inc()
	HTTPDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordSession records the outcome of one IMAP session attempt.
func RecordSession(success bool) {
	if success {
		Sessions.WithLabelValues("success").Inc()
	} else {
		Sessions.WithLabelValues("failure").Inc()
	}
}

// RecordSkip records a message skipped during a list operation.
func RecordSkip(reason string) {
	MessagesSkipped.WithLabelValues(reason).Inc()
}

// RecordParseFailure records a recovered parse failure.
func RecordParseFailure(scope string) {
	ParseFailures.WithLabelValues(scope).Inc()
}

// RecordAttachment records one served attachment.
func RecordAttachment(size int) {
	AttachmentsServed.Inc()
	AttachmentBytes.Add(float64(size))
}
