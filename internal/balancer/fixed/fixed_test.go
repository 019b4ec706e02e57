package fixed

import (
	"testing"

	"srtbalance/internal/balancer"
)

func TestScenarioFixedIndifference(t *testing.T) {
	f := New()
	cfg := balancer.Config{MinBitrate: 300_000, MaxBitrate: 4_000_000}
	st, err := f.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	good := f.Step(st, balancer.Sample{RTTMs: 20, BufferSize: 5})
	bad := f.Step(st, balancer.Sample{RTTMs: 600, BufferSize: 500})

	if good.NewBitrate != 4_000_000 || bad.NewBitrate != 4_000_000 {
		t.Fatalf("fixed output varied with sample: good=%d bad=%d", good.NewBitrate, bad.NewBitrate)
	}
}

func TestInitRejectsInvertedBounds(t *testing.T) {
	f := New()
	if _, err := f.Init(balancer.Config{MinBitrate: 2_000_000, MaxBitrate: 1_000_000}); err == nil {
		t.Fatal("expected ErrInitFailed for min > max")
	}
}

func TestRoundsDownToHundredKbit(t *testing.T) {
	f := New()
	st, err := f.Init(balancer.Config{MinBitrate: 300_000, MaxBitrate: 4_050_000})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	out := f.Step(st, balancer.Sample{})
	if out.NewBitrate != 4_000_000 {
		t.Fatalf("new_bitrate = %d, want 4000000", out.NewBitrate)
	}
}
