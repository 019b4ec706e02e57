package runner

import (
	"testing"

	"srtbalance/internal/balancer"
	"srtbalance/internal/balancer/adaptive"
	"srtbalance/internal/balancer/aimd"
	"srtbalance/internal/balancer/fixed"
	"srtbalance/internal/balancer/registry"
)

func baseConfig() balancer.Config {
	return balancer.Config{MinBitrate: 500_000, MaxBitrate: 6_000_000, SRTLatencyMS: 2000, SRTPktSize: 1316}
}

func TestNewResolvesOverride(t *testing.T) {
	reg := registry.NewDefault()
	r, err := New(reg, baseConfig(), "adaptive", "fixed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != fixed.Name {
		t.Fatalf("Name() = %q, want %q", r.Name(), fixed.Name)
	}
}

func TestNewUnknownOverrideFails(t *testing.T) {
	reg := registry.NewDefault()
	if _, err := New(reg, baseConfig(), "adaptive", "bogus"); err == nil {
		t.Fatal("expected ErrUnknownAlgorithm for bogus override")
	}
}

func TestNewFallsBackToDefaultWhenConfigNameUnknown(t *testing.T) {
	reg := registry.NewDefault()
	r, err := New(reg, baseConfig(), "bogus", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != adaptive.Name {
		t.Fatalf("Name() = %q, want default %q", r.Name(), adaptive.Name)
	}
}

func TestNewSelectsByConfigName(t *testing.T) {
	reg := registry.NewDefault()
	r, err := New(reg, baseConfig(), aimd.Name, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != aimd.Name {
		t.Fatalf("Name() = %q, want %q", r.Name(), aimd.Name)
	}
}

func TestUpdateBoundsResetsStateToHotReloadScenario(t *testing.T) {
	reg := registry.NewDefault()
	r, err := New(reg, baseConfig(), adaptive.Name, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Step(balancer.Sample{TimestampMS: 500, RTTMs: 30, BufferSize: 10, SendRateMbps: 5})

	if err := r.UpdateBounds(1_000_000, 3_000_000); err != nil {
		t.Fatalf("UpdateBounds: %v", err)
	}

	for i := uint64(1); i <= 20; i++ {
		out := r.Step(balancer.Sample{TimestampMS: i * 500, RTTMs: 30, BufferSize: 10, SendRateMbps: 5})
		if out.NewBitrate < 1_000_000 || out.NewBitrate > 3_000_000 {
			t.Fatalf("tick %d: bitrate %d outside reloaded bounds [1000000,3000000]", i, out.NewBitrate)
		}
	}
}

func TestZeroRunnerNameIsNone(t *testing.T) {
	var r *Runner
	if r.Name() != "none" {
		t.Fatalf("Name() on nil runner = %q, want \"none\"", r.Name())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := registry.NewDefault()
	r, err := New(reg, baseConfig(), adaptive.Name, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Close()
	r.Close()
}
