package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding, retrieval, and rate limiting Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"model", "type"},
	)

	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "completion_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"model", "status"},
	)

	RetrievalChunksReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "retrieval_chunks_returned",
			Help:      "Number of context chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
	)

	RateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "rate_limit_rejections_total",
			Help:      "Total requests rejected by the rate limiter",
		},
	)

	CorpusChunksLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragchat",
			Name:      "corpus_chunks_loaded",
			Help:      "Number of embedded chunks held by the store",
		},
	)
)

var chatMetricsOnce sync.Once

// RegisterChatMetrics registers chat pipeline metrics. Safe to call from
// concurrent constructors; registration happens exactly once.
func RegisterChatMetrics() {
	chatMetricsOnce.Do(func() {
		prometheus.MustRegister(EmbeddingRequestsTotal)
		prometheus.MustRegister(EmbeddingRequestDuration)
		prometheus.MustRegister(EmbeddingTokensTotal)
		prometheus.MustRegister(CompletionRequestsTotal)
		prometheus.MustRegister(RetrievalChunksReturned)
		prometheus.MustRegister(RateLimitRejectionsTotal)
		prometheus.MustRegister(CorpusChunksLoaded)
	})
}
