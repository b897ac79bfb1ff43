// Package telemetry exposes Prometheus metrics for the audit engine.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	AuditsStarted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "audits_started_total", Help: "Audit jobs admitted and started"})
	AuditsCompleted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "audits_completed_total", Help: "Audit jobs that produced a report"})
	AuditsFailed      = prometheus.NewCounter(prometheus.CounterOpts{Name: "audits_failed_total", Help: "Audit jobs that ended in failure"})
	AuditsRejected    = prometheus.NewCounter(prometheus.CounterOpts{Name: "audits_rejected_total", Help: "Audit requests rejected at capacity"})
	PagesCrawled      = prometheus.NewCounter(prometheus.CounterOpts{Name: "crawl_pages_total", Help: "Pages accepted into audit corpora"})
	CompletionCalls   = prometheus.NewCounter(prometheus.CounterOpts{Name: "llm_completions_total", Help: "Completion calls issued to the model"})
	EmbeddingCalls    = prometheus.NewCounter(prometheus.CounterOpts{Name: "llm_embeddings_total", Help: "Embedding calls issued to the model"})
	KeywordsExtracted = prometheus.NewCounter(prometheus.CounterOpts{Name: "keywords_extracted_total", Help: "Keywords persisted by the discovery pipeline"})
	AuditsInFlight    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "audits_inflight", Help: "Audit jobs currently holding a pipeline slot"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			AuditsStarted,
			AuditsCompleted,
			AuditsFailed,
			AuditsRejected,
			PagesCrawled,
			CompletionCalls,
			EmbeddingCalls,
			KeywordsExtracted,
			AuditsInFlight,
		)
	})
	return promhttp.Handler()
}
