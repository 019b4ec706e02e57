// Package aimd implements the additive-increase/multiplicative-decrease
// alternative balancer: an RTT-baseline congestion signal instead of
// adaptive's full EMA/jitter estimator.
package aimd

import (
	"math"

	"srtbalance/internal/balancer"
)

// Name is the registry identifier for this algorithm.
const Name = "aimd"

// Tuning defaults, applied whenever the corresponding Config field is zero.
const (
	defaultIncrStep       = balancer.Bitrate(50_000) // bits/step
	defaultDecrMult       = 0.75
	defaultIncrIntervalMS = int64(500)
	defaultDecrIntervalMS = int64(200)

	bufferThreshold = 100 // packets, fixed per spec
)

// AIMD is the stateless algorithm descriptor.
type AIMD struct{}

// New returns the AIMD algorithm descriptor.
func New() *AIMD {
	return &AIMD{}
}

// Name implements balancer.Algorithm.
func (AIMD) Name() string { return Name }

// Description implements balancer.Algorithm.
func (AIMD) Description() string {
	return "additive-increase/multiplicative-decrease balancer driven by an RTT baseline"
}

type state struct {
	cfg balancer.Config

	curBitrate  balancer.Bitrate
	rttBaseline float64
	seeded      bool

	nextIncrTS uint64
	nextDecrTS uint64
}

// Init implements balancer.Algorithm.
func (AIMD) Init(cfg balancer.Config) (balancer.State, error) {
	if cfg.MinBitrate > cfg.MaxBitrate {
		return nil, balancer.ErrInitFailed
	}
	if cfg.AIMDIncrStep <= 0 {
		cfg.AIMDIncrStep = defaultIncrStep
	}
	if cfg.AIMDDecrMult <= 0 || cfg.AIMDDecrMult >= 1 {
		cfg.AIMDDecrMult = defaultDecrMult
	}
	if cfg.AIMDIncrIntervalMS <= 0 {
		cfg.AIMDIncrIntervalMS = defaultIncrIntervalMS
	}
	if cfg.AIMDDecrIntervalMS <= 0 {
		cfg.AIMDDecrIntervalMS = defaultDecrIntervalMS
	}
	if cfg.SRTLatencyMS <= 0 {
		cfg.SRTLatencyMS = 2000
	}

	return &state{
		cfg:        cfg,
		curBitrate: cfg.MaxBitrate,
	}, nil
}

// Cleanup implements balancer.Algorithm.
func (AIMD) Cleanup(balancer.State) {}

// Step implements balancer.Algorithm. See SPEC_FULL.md §4.5.
func (AIMD) Step(s balancer.State, sample balancer.Sample) balancer.Output {
	st := s.(*state)
	cfg := st.cfg
	now := sample.TimestampMS

	if !st.seeded {
		st.rttBaseline = sample.RTTMs
		st.seeded = true
	} else if sample.RTTMs < st.rttBaseline {
		st.rttBaseline = sample.RTTMs
	} else {
		st.rttBaseline = 0.95*st.rttBaseline + 0.05*sample.RTTMs
	}
	rttThreshold := st.rttBaseline * 1.5

	var congested bool
	if sample.RTTMs >= float64(cfg.SRTLatencyMS)/3 {
		st.curBitrate = cfg.MinBitrate
		st.nextDecrTS = now + uint64(cfg.AIMDDecrIntervalMS)
		congested = true
	} else {
		congested = sample.RTTMs > rttThreshold || sample.BufferSize > bufferThreshold
		if congested && now > st.nextDecrTS {
			st.curBitrate = balancer.Bitrate(float64(st.curBitrate) * cfg.AIMDDecrMult)
			st.nextDecrTS = now + uint64(cfg.AIMDDecrIntervalMS)
		} else if !congested && now > st.nextIncrTS {
			st.curBitrate += cfg.AIMDIncrStep
			st.nextIncrTS = now + uint64(cfg.AIMDIncrIntervalMS)
		}
	}

	st.curBitrate = balancer.Clamp(st.curBitrate, cfg.MinBitrate, cfg.MaxBitrate)

	return balancer.Output{
		NewBitrate: balancer.RoundDown100k(st.curBitrate),
		Throughput: sample.SendRateMbps * 1e6,
		RTT:        int64(math.Round(sample.RTTMs)),
		RTTThMin:   st.rttBaseline,
		RTTThMax:   rttThreshold,
		BS:         sample.BufferSize,
		BSTh1:      bufferThreshold,
		BSTh2:      bufferThreshold,
		BSTh3:      bufferThreshold,
	}
}
