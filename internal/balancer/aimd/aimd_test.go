package aimd

import (
	"testing"

	"srtbalance/internal/balancer"
)

func baseConfig() balancer.Config {
	return balancer.Config{
		MinBitrate:         500_000,
		MaxBitrate:         6_000_000,
		SRTLatencyMS:       2000,
		AIMDIncrStep:       100_000,
		AIMDDecrMult:       0.75,
		AIMDIncrIntervalMS: 500,
		AIMDDecrIntervalMS: 200,
	}
}

func TestInitRejectsInvertedBounds(t *testing.T) {
	a := New()
	cfg := baseConfig()
	cfg.MinBitrate, cfg.MaxBitrate = 2_000_000, 1_000_000
	if _, err := a.Init(cfg); err == nil {
		t.Fatal("expected ErrInitFailed for min > max")
	}
}

func TestScenarioArithmeticClimb(t *testing.T) {
	a := New()
	cfg := baseConfig()
	cfg.MaxBitrate = 20_000_000 // headroom so increases aren't clamped immediately
	st, err := a.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	st.(*state).curBitrate = cfg.MinBitrate // Init starts at max; climb from min

	var ts uint64
	var prev balancer.Bitrate = -1
	for i := 0; i < 15; i++ {
		ts += 500
		out := a.Step(st, balancer.Sample{TimestampMS: ts, RTTMs: 30, BufferSize: 10, SendRateMbps: 5})
		if prev >= 0 {
			diff := out.NewBitrate - prev
			if diff != 0 && (diff < 50_000 || diff > 150_000) {
				t.Fatalf("tick %d: consecutive diff %d outside [50000,150000]", i, diff)
			}
		}
		prev = out.NewBitrate
	}
}

func TestScenarioMultiplicativeDecrease(t *testing.T) {
	a := New()
	cfg := baseConfig()
	cfg.MaxBitrate = 6_000_000
	st, err := a.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	stt := st.(*state)
	stt.curBitrate = 4_000_000
	stt.rttBaseline = 30
	stt.seeded = true

	B := stt.curBitrate
	out := a.Step(st, balancer.Sample{TimestampMS: 10_000, RTTMs: 500, BufferSize: 200, SendRateMbps: 5})
	lo := float64(B) * 0.60
	hi := float64(B) * 0.85
	if float64(out.NewBitrate) < lo || float64(out.NewBitrate) > hi {
		t.Fatalf("post-decrease bitrate %d outside [%v,%v]", out.NewBitrate, lo, hi)
	}
}

func TestImmediateMinOnLatencyThirdBreach(t *testing.T) {
	a := New()
	cfg := baseConfig()
	st, err := a.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	out := a.Step(st, balancer.Sample{TimestampMS: 500, RTTMs: float64(cfg.SRTLatencyMS) / 2, BufferSize: 0, SendRateMbps: 5})
	if out.NewBitrate != balancer.RoundDown100k(cfg.MinBitrate) {
		t.Fatalf("new_bitrate = %d, want %d", out.NewBitrate, cfg.MinBitrate)
	}
}

func TestUniversalInvariantsHold(t *testing.T) {
	a := New()
	cfg := baseConfig()
	st, err := a.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	var ts uint64
	for i := 0; i < 50; i++ {
		ts += 500
		out := a.Step(st, balancer.Sample{TimestampMS: ts, RTTMs: float64(30 + i*20), BufferSize: int64(i * 5)})
		if out.NewBitrate < cfg.MinBitrate || out.NewBitrate > cfg.MaxBitrate {
			t.Fatalf("tick %d: bitrate %d out of bounds", i, out.NewBitrate)
		}
		if out.NewBitrate%100_000 != 0 {
			t.Fatalf("tick %d: bitrate %d not a 100kbit/s multiple", i, out.NewBitrate)
		}
	}
}
