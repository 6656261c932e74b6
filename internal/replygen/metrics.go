package replygen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "blog_replygen_generations_total",
	Help: "Number of reply generations by outcome",
}, []string{"outcome"})

var generateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "blog_replygen_duration_seconds",
	Help:    "Latency of reply generation calls",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
})
