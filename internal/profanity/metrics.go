package profanity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classifyCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_profanity_classifications_total",
	Help: "Number of classifications by source and verdict",
}, []string{"source", "profane"})

var apiFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_profanity_api_failures_total",
	Help: "Number of profanity API calls that fell back to the failure verdict",
}, []string{"reason"})

var apiDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "blog_profanity_api_duration_seconds",
	Help:    "Latency of profanity API calls",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
})

var cacheLookupCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_profanity_cache_lookups_total",
	Help: "Verdict cache lookups by result",
}, []string{"result"})
