// Package loop drives the control loop's state machine:
// Disconnected -> Connecting -> Running -> (Reloading -> Running)* ->
// Draining -> Terminated. It owns the runner, the transport session, and
// the encoder/overlay adapters, and mediates every reload and shutdown.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"srtbalance/internal/balancer"
	"srtbalance/internal/clock"
	"srtbalance/internal/config"
	"srtbalance/internal/encoder"
	"srtbalance/internal/obsmetrics"
	"srtbalance/internal/overlay"
	"srtbalance/internal/runner"
	"srtbalance/internal/transport"
)

// State names the loop's state machine positions.
type State int

// Loop states, in the order named by SPEC_FULL.md §4.9.
const (
	Disconnected State = iota
	Connecting
	Running
	Reloading
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Running:
		return "Running"
	case Reloading:
		return "Reloading"
	case Draining:
		return "Draining"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Tracer is the subset of telemetry.Tracer the loop needs; satisfied by
// both telemetry.Tracer and telemetry.NoOp.
type Tracer interface {
	Transition(ctx context.Context, from, to string)
	Tick(ctx context.Context, tier string) (context.Context, func())
	Shutdown(ctx context.Context) error
}

const (
	tickInterval        = 20 * time.Millisecond
	stallCheckInterval  = 1 * time.Second
	ackTimeoutCheck     = 20 * time.Millisecond
	ackTimeout          = 6000 * time.Millisecond
	connectBackoff      = 500 * time.Millisecond
	watchdogGrace       = 3 * time.Second
)

// ProgressFunc reports the host's pipeline-progress counter; the loop
// treats two consecutive unchanged reads one second apart as a stall.
type ProgressFunc func() int64

// ConfigLoader reparses the configuration file on a pending reload.
type ConfigLoader func() (config.Config, error)

// Loop wires a runner, a transport dialer/session, and the encoder/overlay
// adapters into the cooperative event loop of SPEC_FULL.md §4.9 and §5.
type Loop struct {
	logger *zap.Logger
	clock  clock.Source

	dialer    transport.Dialer
	host      string
	port      int
	streamID  string
	latencyMS int64
	pktSize   int64

	runner  *runner.Runner
	encoder encoder.Adapter
	overlay overlay.Adapter

	cfg          config.Config
	loadConfig   ConfigLoader
	progress     ProgressFunc

	metrics *obsmetrics.Exporter
	rttHist *obsmetrics.RTTHistogram
	tracer  Tracer

	state        atomic.Int32
	reloadFlag   atomic.Bool
	stopFlag     atomic.Bool
	lastProgress int64
	lastAckSeen  time.Time
	lastAckCount int64
	sawAck       bool
	lastBitrate  balancer.Bitrate
	lastTrendLog time.Time
}

// trendHistory is the subset of *overlay.Table the loop needs to drive the
// trend sparkline on its own cadence, independent of overlay.Update's
// per-tick rate.
type trendHistory interface {
	overlay.Trender
	History() []int64
}

// Options bundles the loop's collaborators and session parameters.
type Options struct {
	Logger       *zap.Logger
	Clock        clock.Source
	Dialer       transport.Dialer
	Host         string
	Port         int
	StreamID     string
	LatencyMS    int64
	PktSize      int64
	Runner       *runner.Runner
	Encoder      encoder.Adapter
	Overlay      overlay.Adapter
	Config       config.Config
	LoadConfig   ConfigLoader
	Progress     ProgressFunc
	Metrics      *obsmetrics.Exporter
	RTTHistogram *obsmetrics.RTTHistogram
	Tracer       Tracer
}

// New builds a Loop ready to Run.
func New(opts Options) *Loop {
	l := &Loop{
		logger:     opts.Logger,
		clock:      opts.Clock,
		dialer:     opts.Dialer,
		host:       opts.Host,
		port:       opts.Port,
		streamID:   opts.StreamID,
		latencyMS:  opts.LatencyMS,
		pktSize:    opts.PktSize,
		runner:     opts.Runner,
		encoder:    opts.Encoder,
		overlay:    opts.Overlay,
		cfg:        opts.Config,
		loadConfig: opts.LoadConfig,
		progress:   opts.Progress,
		metrics:    opts.Metrics,
		rttHist:    opts.RTTHistogram,
		tracer:     opts.Tracer,
	}
	l.state.Store(int32(Disconnected))
	return l
}

// RequestReload sets the pending-reload flag, checked at the next tick.
// Safe to call from a signal handler.
func (l *Loop) RequestReload() { l.reloadFlag.Store(true) }

// RequestStop sets the stop flag, checked at the next cooperative yield.
// Safe to call from a signal handler.
func (l *Loop) RequestStop() { l.stopFlag.Store(true) }

// State returns the loop's current state.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(ctx context.Context, s State) {
	from := l.State()
	l.state.Store(int32(s))
	l.tracer.Transition(ctx, from.String(), s.String())
}

// Run executes the full state machine until a fatal condition, the stop
// flag, or ctx cancellation. It always returns with the loop in Terminated.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(ctx, Terminated)

	sess, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	l.setState(ctx, Running)

	tickT := time.NewTicker(tickInterval)
	defer tickT.Stop()
	stallT := time.NewTicker(stallCheckInterval)
	defer stallT.Stop()
	ackT := time.NewTicker(ackTimeoutCheck)
	defer ackT.Stop()

	l.lastAckSeen = time.Now()

	drainReason := ""
	for {
		select {
		case <-ctx.Done():
			drainReason = "context canceled"
		case <-tickT.C:
			if l.reloadFlag.Load() {
				if err := l.reload(ctx); err != nil {
					l.logger.Error("fatal reload error", zap.Error(err))
					drainReason = err.Error()
				}
			}
			if err := l.tick(ctx, sess); err != nil {
				l.logger.Error("fatal tick error", zap.Error(err))
				drainReason = err.Error()
			}
		case <-stallT.C:
			if l.progress != nil && l.stalled() {
				drainReason = "pipeline stall"
			}
		case <-ackT.C:
			if l.sawAck && time.Since(l.lastAckSeen) > ackTimeout {
				drainReason = "AckTimeout"
			}
		}

		if l.stopFlag.Load() || drainReason != "" {
			break
		}
	}

	l.logger.Info("draining", zap.String("reason", drainReason))
	return l.drain(ctx, drainReason)
}

func (l *Loop) connect(ctx context.Context) (transport.Session, error) {
	l.setState(ctx, Connecting)
	for {
		sess, err := l.dialer.Connect(ctx, l.host, l.port, l.streamID, l.latencyMS, l.pktSize)
		if err == nil {
			return sess, nil
		}
		var cerr *transport.ConnectError
		if errors.As(err, &cerr) {
			l.logger.Warn("connect failed, retrying", zap.String("category", cerr.Category.String()), zap.Error(cerr.Err))
		} else {
			l.logger.Warn("connect failed, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
}

// tick implements one 20ms telemetry -> step -> publish iteration. A
// transport-read failure is transient and skips the tick with no state
// change. tick sends no payload itself and always returns nil.
func (l *Loop) tick(ctx context.Context, sess transport.Session) error {
	_, end := l.tracer.Tick(ctx, "")
	defer end()

	stats, err := sess.Stats(ctx)
	if err != nil {
		return nil // transient: skip this tick
	}
	bufSize, err := sess.BufferSize(ctx)
	if err != nil {
		return nil // transient: skip this tick
	}

	if stats.AckCount != l.lastAckCount {
		l.lastAckCount = stats.AckCount
		l.lastAckSeen = time.Now()
		l.sawAck = true
	}

	sample := balancer.Sample{
		TimestampMS:       l.clock.NowMS(),
		RTTMs:             stats.RTTMs,
		BufferSize:        bufSize,
		SendRateMbps:      stats.SendRateMbps,
		PktLossTotal:      stats.PktLossTotal,
		PktRetransTotal:   stats.PktRetransTotal,
	}

	out := l.runner.Step(sample)

	if l.rttHist != nil {
		l.rttHist.Record(out.RTT)
	}
	if l.metrics != nil {
		l.metrics.Observe(int64(out.NewBitrate), out.Throughput, out.RTT, out.RTTThMax, out.BS, tierOf(out))
	}

	if out.NewBitrate != l.lastBitrate {
		l.lastBitrate = out.NewBitrate
		l.encoder.SetBitrate(int64(out.NewBitrate))
	}
	l.overlay.Update(out)
	l.updateTrend()
	return nil
}

// updateTrend drives the overlay's trend sparkline at the configured
// hdr_log_interval_ms cadence, separate from Update's per-tick rate. A no-op
// when the overlay doesn't implement trendHistory or the interval is unset.
func (l *Loop) updateTrend() {
	interval := time.Duration(l.cfg.Observability.HDRLogIntervalMS) * time.Millisecond
	if interval <= 0 {
		return
	}
	if !l.lastTrendLog.IsZero() && time.Since(l.lastTrendLog) < interval {
		return
	}
	t, ok := l.overlay.(trendHistory)
	if !ok {
		return
	}
	l.lastTrendLog = time.Now()
	t.Trend(t.History())
}

// tierOf derives a coarse decision-tier label for metrics purposes from an
// Output snapshot; the balancer itself never names its own tier.
func tierOf(out balancer.Output) string {
	switch {
	case out.BS > out.BSTh3 && out.BSTh3 > 0:
		return "emergency"
	case out.BS > out.BSTh2 && out.BSTh2 > 0:
		return "heavy"
	case out.BS > out.BSTh1 && out.BSTh1 > 0:
		return "light"
	default:
		return "stable"
	}
}

func (l *Loop) stalled() bool {
	cur := l.progress()
	stalled := cur == l.lastProgress
	l.lastProgress = cur
	return stalled
}

// reload reparses the configuration file and applies new bounds atomically.
// A parse failure is recoverable: it logs and keeps the current state. An
// algorithm init failure from UpdateBounds is fatal, per §7, and is
// returned so Run can drain the loop instead of continuing on a runner left
// in an indeterminate state.
func (l *Loop) reload(ctx context.Context) error {
	l.reloadFlag.Store(false)
	if l.loadConfig == nil {
		return nil
	}
	l.setState(ctx, Reloading)
	defer l.setState(ctx, Running)

	newCfg, err := l.loadConfig()
	if err != nil {
		l.logger.Error("config reload failed, keeping current state", zap.Error(err))
		return nil
	}
	minBps, maxBps := newCfg.MinBitrateBps(), newCfg.MaxBitrateBps()
	if err := l.runner.UpdateBounds(balancer.Bitrate(minBps), balancer.Bitrate(maxBps)); err != nil {
		return fmt.Errorf("algorithm init failed during reload: %w", err)
	}
	l.cfg = newCfg
	if l.rttHist != nil {
		l.rttHist.Reset()
	}
	l.logger.Info("configuration reloaded", zap.Int64("min_bps", minBps), zap.Int64("max_bps", maxBps))
	return nil
}

// drain releases every held resource. If that blocks past the watchdog
// grace period, drain logs it and returns without waiting any longer.
func (l *Loop) drain(ctx context.Context, reason string) error {
	l.setState(ctx, Draining)

	done := make(chan struct{})
	go func() {
		l.runner.Close()
		_ = l.tracer.Shutdown(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(watchdogGrace):
		l.logger.Error("watchdog forced exit: drain blocked", zap.Duration("grace", watchdogGrace))
	}

	if reason == "" || reason == "context canceled" {
		return nil
	}
	return fmt.Errorf("loop: shutdown: %s", reason)
}
