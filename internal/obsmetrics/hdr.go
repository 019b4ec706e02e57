package obsmetrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
)

// RTTHistogram accumulates per-tick RTT samples and periodically logs
// p50/p95/p99 at a configurable cadence, independent of the overlay line.
type RTTHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram

	logger   *zap.Logger
	interval time.Duration
	lastLog  time.Time
}

// NewRTTHistogram builds an RTTHistogram spanning 1ms..10s at 3 significant
// digits, logging at the given interval (zero disables periodic logging).
func NewRTTHistogram(logger *zap.Logger, interval time.Duration) *RTTHistogram {
	return &RTTHistogram{
		hist:     hdrhistogram.New(1, 10_000, 3),
		logger:   logger,
		interval: interval,
	}
}

// Record adds one RTT sample in milliseconds and logs a percentile summary
// if the logging interval has elapsed.
func (r *RTTHistogram) Record(rttMs int64) {
	if rttMs <= 0 {
		return
	}
	r.mu.Lock()
	_ = r.hist.RecordValue(rttMs)
	due := r.interval > 0 && (r.lastLog.IsZero() || time.Since(r.lastLog) >= r.interval)
	var p50, p95, p99 int64
	if due {
		p50 = r.hist.ValueAtQuantile(50)
		p95 = r.hist.ValueAtQuantile(95)
		p99 = r.hist.ValueAtQuantile(99)
		r.lastLog = time.Now()
	}
	r.mu.Unlock()

	if due {
		r.logger.Info("rtt percentiles",
			zap.Int64("p50_ms", p50),
			zap.Int64("p95_ms", p95),
			zap.Int64("p99_ms", p99))
	}
}

// Reset discards all accumulated samples, used after a configuration
// reload so a pre-reload distribution doesn't bias later percentiles. It
// rebuilds the histogram rather than relying on an in-place clear.
func (r *RTTHistogram) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hist = hdrhistogram.New(1, 10_000, 3)
}
