package loop

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"srtbalance/internal/balancer"
	"srtbalance/internal/balancer/registry"
	"srtbalance/internal/clock"
	"srtbalance/internal/config"
	"srtbalance/internal/encoder"
	"srtbalance/internal/overlay"
	"srtbalance/internal/runner"
	"srtbalance/internal/transport"
)

type noopTracer struct{}

func (noopTracer) Transition(context.Context, string, string) {}
func (noopTracer) Tick(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
func (noopTracer) Shutdown(context.Context) error { return nil }

type fakeSession struct {
	ackCount atomic.Int64
	closed   atomic.Bool
}

func (s *fakeSession) Send(ctx context.Context, data []byte) (int, error) { return len(data), nil }
func (s *fakeSession) Stats(ctx context.Context) (transport.Stats, error) {
	return transport.Stats{RTTMs: 30, SendRateMbps: 5, AckCount: s.ackCount.Add(1)}, nil
}
func (s *fakeSession) BufferSize(ctx context.Context) (int64, error) { return 10, nil }
func (s *fakeSession) Close() error                                  { s.closed.Store(true); return nil }

type fakeDialer struct {
	sess    *fakeSession
	failN   int
	attempt int
}

func (d *fakeDialer) Connect(ctx context.Context, host string, port int, streamID string, latencyMS, pktSize int64) (transport.Session, error) {
	d.attempt++
	if d.attempt <= d.failN {
		return nil, &transport.ConnectError{Category: transport.ErrOther, Err: errors.New("simulated failure")}
	}
	return d.sess, nil
}

func newTestLoop(t *testing.T, dialer *fakeDialer, progress ProgressFunc) *Loop {
	t.Helper()
	reg := registry.NewDefault()
	rn, err := runner.New(reg, balancer.Config{MinBitrate: 500_000, MaxBitrate: 6_000_000, SRTLatencyMS: 2000, SRTPktSize: 1316}, "adaptive", "")
	if err != nil {
		t.Fatalf("runner.New: %v", err)
	}
	return New(Options{
		Logger:    zap.NewNop(),
		Clock:     clock.NewFake(1),
		Dialer:    dialer,
		Host:      "127.0.0.1",
		Port:      9000,
		LatencyMS: 2000,
		PktSize:   1316,
		Runner:    rn,
		Encoder:   encoder.NoOp{},
		Overlay:   overlay.NoOp{},
		Config:    config.Default(),
		Progress:  progress,
		Tracer:    noopTracer{},
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return time.Now().UnixNano() })

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run returned error on context cancel: %v", err)
	}
	if l.State() != Terminated {
		t.Fatalf("final state = %v, want Terminated", l.State())
	}
	if !sess.closed.Load() {
		t.Fatal("session was not closed on drain")
	}
}

func TestRunRetriesConnectOnTransientFailure(t *testing.T) {
	sess := &fakeSession{}
	dialer := &fakeDialer{sess: sess, failN: 2}
	l := newTestLoop(t, dialer, func() int64 { return time.Now().UnixNano() })

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dialer.attempt < 3 {
		t.Fatalf("attempt count = %d, want >= 3", dialer.attempt)
	}
}

func TestRunDetectsPipelineStall(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return 42 }) // never changes

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := l.Run(ctx)
	if err == nil {
		t.Fatal("expected stall to produce a shutdown error")
	}
}

func TestRequestStopEndsRunPromptly(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return time.Now().UnixNano() })

	go func() {
		time.Sleep(60 * time.Millisecond)
		l.RequestStop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestReloadAppliesNewBoundsAndReturnsToRunning(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return time.Now().UnixNano() })
	l.loadConfig = func() (config.Config, error) {
		return config.Default().WithBounds(1_000_000, 3_000_000), nil
	}

	go func() {
		time.Sleep(40 * time.Millisecond)
		l.RequestReload()
		time.Sleep(60 * time.Millisecond)
		l.RequestStop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if l.cfg.MinBitrateKbps != 1000 || l.cfg.MaxBitrateKbps != 3000 {
		t.Fatalf("cfg after reload = %d/%d kbps, want 1000/3000", l.cfg.MinBitrateKbps, l.cfg.MaxBitrateKbps)
	}
	if l.State() != Terminated {
		t.Fatalf("final state = %v, want Terminated", l.State())
	}
}

func TestTickDrivesOverlayTrendOnHDRLogCadence(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return time.Now().UnixNano() })

	var buf bytes.Buffer
	l.overlay = overlay.NewTable(&buf, 10)
	l.cfg.Observability.HDRLogIntervalMS = 30

	go func() {
		time.Sleep(200 * time.Millisecond)
		l.RequestStop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "bitrate (kbit/s)") {
		t.Fatal("expected a trend sparkline to have been rendered during the run")
	}
}

func TestReloadAlgorithmInitFailureIsFatal(t *testing.T) {
	sess := &fakeSession{}
	l := newTestLoop(t, &fakeDialer{sess: sess}, func() int64 { return time.Now().UnixNano() })
	l.loadConfig = func() (config.Config, error) {
		return config.Default().WithBounds(6_000_000, 500_000), nil // min > max: algorithm Init fails
	}

	l.RequestReload()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Run(ctx); err == nil {
		t.Fatal("expected a fatal error after an algorithm init failure during reload")
	}
	if l.State() != Terminated {
		t.Fatalf("final state = %v, want Terminated", l.State())
	}
}
