// Package metrics exposes Prometheus counters/gauges for the actor
// runtime and broadcast engine, grounded on ws/metrics.go: package-level
// metric vars registered once in init(), served over HTTP via
// promhttp.Handler() on their own goroutine.
//
// Unlike the teacher, exposition is opt-in: a harness-driven node
// shouldn't need an open port to pass correctness tests, so Serve is only
// called when an address is configured (see internal/config).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	envelopesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gossip_envelopes_in_total",
		Help: "Total number of envelopes decoded from stdin, by body type.",
	}, []string{"type"})

	envelopesOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gossip_envelopes_out_total",
		Help: "Total number of envelopes written to stdout, by body type.",
	}, []string{"type"})

	linesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gossip_input_lines_dropped_total",
		Help: "Total number of blank input lines skipped before decoding.",
	})

	timerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gossip_timer_queue_depth",
		Help: "Current number of pending timers in the event loop's timer wheel.",
	})

	batchQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gossip_broadcast_batch_depth",
		Help: "Current number of values awaiting outbound fan-out.",
	})

	seenValues = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gossip_broadcast_seen_values",
		Help: "Current number of distinct values known to this node.",
	})

	batchReleases = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gossip_broadcast_batch_releases_total",
		Help: "Total number of times the batch queue was released as an outbound fan-out.",
	})

	batchReleaseSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gossip_broadcast_batch_release_size",
		Help:    "Distribution of the number of values carried by a single batch release.",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
	})

	rebroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gossip_broadcast_coverage_retries_total",
		Help: "Total number of CheckAck timers that found a value under-covered and re-enqueued it.",
	})

	rateLimitedSends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gossip_broadcast_rate_limited_sends_total",
		Help: "Total number of outbound broadcast envelopes dropped by the broadcast rate limiter.",
	})
)

func init() {
	prometheus.MustRegister(
		envelopesIn,
		envelopesOut,
		linesDropped,
		timerQueueDepth,
		batchQueueDepth,
		seenValues,
		batchReleases,
		batchReleaseSize,
		rebroadcasts,
		rateLimitedSends,
	)
}

// Collector is the narrow surface other packages depend on, so that
// internal/actor, internal/broadcast and internal/ioline don't need to
// import Prometheus types directly — they just see the small interfaces
// they each declare (actor.Metrics, broadcast.Metrics, ioline.Metrics),
// which *Collector satisfies.
type Collector struct{}

// NewCollector returns a Collector backed by the package-level Prometheus
// metrics registered in init().
func NewCollector() *Collector { return &Collector{} }

func (c *Collector) ObserveEnvelopeIn(typeTag string)  { envelopesIn.WithLabelValues(typeTag).Inc() }
func (c *Collector) ObserveEnvelopeOut(typeTag string) { envelopesOut.WithLabelValues(typeTag).Inc() }
func (c *Collector) ObserveLineDropped()               { linesDropped.Inc() }
func (c *Collector) ObserveTimerQueueDepth(n int)       { timerQueueDepth.Set(float64(n)) }

func (c *Collector) ObserveBatchRelease(valueCount int) {
	batchReleases.Inc()
	batchReleaseSize.Observe(float64(valueCount))
}
func (c *Collector) ObserveRebroadcast()          { rebroadcasts.Inc() }
func (c *Collector) ObserveRateLimitedSend()      { rateLimitedSends.Inc() }
func (c *Collector) SetSeenValues(n int)          { seenValues.Set(float64(n)) }
func (c *Collector) SetBatchQueueDepth(n int)     { batchQueueDepth.Set(float64(n)) }

// Serve starts the Prometheus HTTP exposition endpoint on addr and blocks
// until ctx is cancelled, then shuts the server down gracefully. Intended
// to run on its own goroutine; never touches actor/engine state.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
