package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whatsnew"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "upstream_requests_total", Help: "Upstream API calls by operation and HTTP status (\"error\" on transport failure)."},
		[]string{"op", "status"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "upstream_request_seconds", Help: "Upstream API latency by operation.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)

	DraftEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "draft_edits_total", Help: "Edits applied to drafts by operation and result."},
		[]string{"op", "result"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "submissions_total", Help: "Draft submissions by mode and result."},
		[]string{"mode", "result"},
	)
	NewsImported = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "news_items_imported_total", Help: "Feed items appended to drafts as news rows."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(UpstreamRequests)
	reg.MustRegister(UpstreamLatency)
	reg.MustRegister(DraftEdits)
	reg.MustRegister(Submissions)
	reg.MustRegister(NewsImported)
}
