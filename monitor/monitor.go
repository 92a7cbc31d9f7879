package monitor

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

var (
	// MembersInserted counts committed inserts in the referral graph
	MembersInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "genealogy",
		Name:      "members_inserted_total",
		Help:      "Number of members inserted in the referral network",
	})

	// WriteConflicts counts retried conflicts while updating the ancestor counters
	WriteConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genealogy",
		Name:      "write_conflicts_total",
		Help:      "Number of write conflicts retried on the ancestor chain",
	}, []string{"action"})

	// WriteRetriesExhausted counts writes that failed with service unavailable
	WriteRetriesExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genealogy",
		Name:      "write_retries_exhausted_total",
		Help:      "Number of writes that exhausted the write conflict retries",
	}, []string{"action"})

	// TreeNodesEmitted observes the size of the tree responses
	TreeNodesEmitted = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genealogy",
		Name:      "tree_nodes_emitted",
		Help:      "Number of nodes returned by a network tree request",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// TreeRequestsRejected counts tree requests over the node budget
	TreeRequestsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "genealogy",
		Name:      "tree_requests_rejected_total",
		Help:      "Number of network tree requests rejected for exceeding the node budget",
	})

	// EarningsRecomputed observes the duration of the earnings recompute
	EarningsRecomputed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "genealogy",
		Name:      "earnings_recompute_duration_seconds",
		Help:      "Duration of the earnings rollup recompute",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	apiRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genealogy",
		Name:      "api_request_duration_seconds",
		Help:      "Duration of API requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"route", "method", "status"})
)

var profilingServer *http.Server

func init() {
	prometheus.MustRegister(
		MembersInserted,
		WriteConflicts,
		WriteRetriesExhausted,
		TreeNodesEmitted,
		TreeRequestsRejected,
		EarningsRecomputed,
		apiRequestDuration,
	)
}

// RequestDuration gin middleware recording the latency per route
func RequestDuration() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		apiRequestDuration.
			WithLabelValues(route, c.Request.Method, fmt.Sprintf("%d", c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// LoopProfilingServer exposes the metrics endpoint while the monitoring is enabled
func LoopProfilingServer(cfg config.MonitoringConfig) {
	if !cfg.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	profilingServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	log.Info().Str("section", "monitor").Int("port", cfg.Port).Msg("Metrics server started")
	if err := profilingServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Str("section", "monitor").Msg("Unable to start metrics server")
	}
}

// ShutdownServer godoc
func ShutdownServer() {
	if profilingServer == nil {
		return
	}
	if err := profilingServer.Close(); err != nil {
		log.Error().Err(err).Str("section", "monitor").Msg("Unable to stop metrics server")
	}
}
