// Package obsmetrics exports the control loop's decision metrics over
// Prometheus, entirely decoupled from the cooperative loop: the HTTP
// handler only ever reads already-published gauge values.
package obsmetrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes the balancer's per-tick decision as Prometheus
// gauges/counters.
type Exporter struct {
	registry *prometheus.Registry

	bitrate    prometheus.Gauge
	throughput prometheus.Gauge
	rtt        prometheus.Gauge
	rttThMax   prometheus.Gauge
	bufferSize prometheus.Gauge

	tierDecisions *prometheus.CounterVec

	server *http.Server
}

// NewExporter builds an Exporter with its own registry, so enabling
// metrics never pollutes (or panics on) the global default registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	e := &Exporter{
		registry: reg,
		bitrate: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "srtbalance_bitrate_bps",
			Help: "Current published encoder bitrate in bits per second.",
		}),
		throughput: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "srtbalance_throughput_bps",
			Help: "Smoothed transport throughput estimate in bits per second.",
		}),
		rtt: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "srtbalance_rtt_ms",
			Help: "Last observed round-trip time in milliseconds.",
		}),
		rttThMax: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "srtbalance_rtt_threshold_max_ms",
			Help: "Current upper RTT threshold used by the decision tiers.",
		}),
		bufferSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "srtbalance_buffer_size_packets",
			Help: "Outstanding unacknowledged packet count on the last tick.",
		}),
		tierDecisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "srtbalance_decision_tier_total",
			Help: "Count of decisions by tier (emergency/heavy/light/stable/none).",
		}, []string{"tier"}),
	}
	return e
}

// Observe records one tick's decision. tier is the label under which it is
// counted; an empty tier is counted as "none".
func (e *Exporter) Observe(bitrateBps int64, throughputBps float64, rttMs int64, rttThMax float64, bufferSize int64, tier string) {
	e.bitrate.Set(float64(bitrateBps))
	e.throughput.Set(throughputBps)
	e.rtt.Set(float64(rttMs))
	e.rttThMax.Set(rttThMax)
	e.bufferSize.Set(float64(bufferSize))
	if tier == "" {
		tier = "none"
	}
	e.tierDecisions.WithLabelValues(tier).Inc()
}

// Serve starts the /metrics HTTP server on addr in the background. It
// returns once the listener is bound, or an error if it never was.
func (e *Exporter) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-time.After(100 * time.Millisecond):
	}
	return nil
}

// Close shuts the metrics HTTP server down.
func (e *Exporter) Close(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
