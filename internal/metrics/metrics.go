// Package metrics holds the Prometheus collectors for the chat backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gemini call results.
const (
	ResultOK      = "ok"
	ResultConfig  = "config"
	ResultAuth    = "auth"
	ResultQuota   = "quota"
	ResultNetwork = "network"
	ResultEmpty   = "empty"
	ResultUnknown = "unknown"
)

var (
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "chat_requests_total",
		Help:      "Chat requests by outcome.",
	}, []string{"outcome"})

	MessagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "portfolio",
		Name:      "chat_messages_stored_total",
		Help:      "Chat messages written to the store by sender.",
	}, []string{"sender"})

	GeminiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "portfolio",
		Name:      "gemini_request_duration_seconds",
		Help:      "Latency of Gemini generate calls by result.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"result"})
)

func ObserveGemini(result string, elapsed time.Duration) {
	GeminiDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
