// Package adaptive implements the default bitrate balancing algorithm: an
// EMA-smoothed estimate of buffer occupancy, RTT, throughput and loss rate
// feeding a four-tier (emergency/heavy/light/stable) decision, in strict
// priority order, on every telemetry sample.
package adaptive

import (
	"math"

	"srtbalance/internal/balancer"
)

// Name is the registry identifier for this algorithm.
const Name = "adaptive"

// Tuning defaults, applied whenever the corresponding Config field is zero.
const (
	defaultIncrStep      = balancer.Bitrate(30_000)  // bits/step
	defaultDecrStep      = balancer.Bitrate(100_000) // bits/step
	defaultIncrIntervalMS = int64(500)
	defaultDecrIntervalMS = int64(200)

	fastDecrIntervalMS = int64(250)
)

// Adaptive is the stateless algorithm descriptor; all mutable data lives in
// *state, created by Init and owned exclusively by the session that created
// it.
type Adaptive struct{}

// New returns the adaptive algorithm descriptor.
func New() *Adaptive {
	return &Adaptive{}
}

// Name implements balancer.Algorithm.
func (Adaptive) Name() string { return Name }

// Description implements balancer.Algorithm.
func (Adaptive) Description() string {
	return "EMA-smoothed buffer/RTT/throughput/loss estimator with a four-tier congestion decision"
}

// state is the adaptive algorithm's per-session memory (§3 Adaptive state).
type state struct {
	cfg balancer.Config

	curBitrate balancer.Bitrate

	bsAvg    float64
	bsJitter float64
	prevBS   float64

	rttAvg      float64
	rttMin      float64
	rttJitter   float64
	rttAvgDelta float64
	prevRTT     float64

	throughput float64
	lossRate   float64

	nextIncrTS uint64
	nextDecrTS uint64

	prevPktLoss    int64
	prevPktRetrans int64
}

// Init implements balancer.Algorithm.
func (Adaptive) Init(cfg balancer.Config) (balancer.State, error) {
	if cfg.MinBitrate > cfg.MaxBitrate {
		return nil, balancer.ErrInitFailed
	}
	if cfg.AdaptiveIncrStep <= 0 {
		cfg.AdaptiveIncrStep = defaultIncrStep
	}
	if cfg.AdaptiveDecrStep <= 0 {
		cfg.AdaptiveDecrStep = defaultDecrStep
	}
	if cfg.AdaptiveIncrIntervalMS <= 0 {
		cfg.AdaptiveIncrIntervalMS = defaultIncrIntervalMS
	}
	if cfg.AdaptiveDecrIntervalMS <= 0 {
		cfg.AdaptiveDecrIntervalMS = defaultDecrIntervalMS
	}
	if cfg.SRTPktSize <= 0 {
		cfg.SRTPktSize = 188 * 7
	}
	if cfg.SRTLatencyMS <= 0 {
		cfg.SRTLatencyMS = 2000
	}

	return &state{
		cfg:        cfg,
		curBitrate: cfg.MaxBitrate,
		rttMin:     200,
		prevRTT:    300,
	}, nil
}

// Cleanup implements balancer.Algorithm.
func (Adaptive) Cleanup(balancer.State) {}

// Step implements balancer.Algorithm. The numbered comments below mark the
// six per-tick stages, evaluated in order.
func (Adaptive) Step(s balancer.State, sample balancer.Sample) balancer.Output {
	st := s.(*state)
	cfg := st.cfg
	now := sample.TimestampMS

	// 1. Cumulative-loss deltas.
	lossDelta := sample.PktLossTotal - st.prevPktLoss
	if lossDelta < 0 {
		lossDelta = 0
	}
	retransDelta := sample.PktRetransTotal - st.prevPktRetrans
	if retransDelta < 0 {
		retransDelta = 0
	}
	st.prevPktLoss = sample.PktLossTotal
	st.prevPktRetrans = sample.PktRetransTotal
	if lossDelta > 0 || retransDelta > 0 {
		st.lossRate = 0.9*st.lossRate + 0.1*float64(lossDelta+retransDelta)
	} else {
		st.lossRate = 0.9 * st.lossRate
	}
	pktLossCongestion := st.lossRate > 0.5

	// 2. Buffer size smoothing.
	st.bsAvg = 0.99*st.bsAvg + 0.01*float64(sample.BufferSize)
	st.bsJitter = 0.99 * st.bsJitter
	if d := float64(sample.BufferSize) - st.prevBS; d > st.bsJitter {
		st.bsJitter = d
	}
	st.prevBS = float64(sample.BufferSize)

	// 3. RTT smoothing.
	if st.rttAvg == 0 {
		st.rttAvg = sample.RTTMs
	} else {
		st.rttAvg = 0.99*st.rttAvg + 0.01*sample.RTTMs
	}
	deltaRTT := sample.RTTMs - st.prevRTT
	st.rttAvgDelta = 0.8*st.rttAvgDelta + 0.2*deltaRTT
	roundedRTT := math.Round(sample.RTTMs)
	st.prevRTT = roundedRTT
	st.rttMin *= 1.001
	if roundedRTT != 100 && sample.RTTMs < st.rttMin && st.rttAvgDelta < 1 {
		st.rttMin = sample.RTTMs
	}
	st.rttJitter = 0.99 * st.rttJitter
	if deltaRTT > st.rttJitter {
		st.rttJitter = deltaRTT
	}

	// 4. Throughput smoothing.
	st.throughput = 0.97*st.throughput + 0.03*(sample.SendRateMbps*1e6/1024)

	// 5. Thresholds.
	bsTh3 := (st.bsAvg + st.bsJitter) * 4
	bsTh2 := math.Max(50, st.bsAvg+math.Max(st.bsJitter*3, st.bsAvg))
	if cfg.SRTPktSize > 0 {
		bsTh2Cap := (st.throughput / 8) * (float64(cfg.SRTLatencyMS) / 2) / float64(cfg.SRTPktSize)
		bsTh2 = math.Min(bsTh2, bsTh2Cap)
	}
	bsTh1 := math.Max(50, st.bsAvg+st.bsJitter*2.5)
	rttThMax := st.rttAvg + math.Max(st.rttJitter*4, st.rttAvg*0.15)
	rttThMin := st.rttMin + math.Max(1, st.rttJitter*2)

	// 6. Decision, strict priority.
	switch {
	case st.curBitrate > cfg.MinBitrate &&
		(roundedRTT >= float64(cfg.SRTLatencyMS)/3 || float64(sample.BufferSize) > bsTh3):
		st.curBitrate = cfg.MinBitrate
		st.nextDecrTS = now + uint64(cfg.AdaptiveDecrIntervalMS)

	case now > st.nextDecrTS &&
		(roundedRTT > float64(cfg.SRTLatencyMS)/5 || float64(sample.BufferSize) > bsTh2 || pktLossCongestion):
		st.curBitrate -= cfg.AdaptiveDecrStep + st.curBitrate/10
		st.nextDecrTS = now + uint64(fastDecrIntervalMS)

	case now > st.nextDecrTS &&
		(roundedRTT > rttThMax || float64(sample.BufferSize) > bsTh1):
		st.curBitrate -= cfg.AdaptiveDecrStep
		st.nextDecrTS = now + uint64(cfg.AdaptiveDecrIntervalMS)

	case now > st.nextIncrTS &&
		roundedRTT < rttThMin && st.rttAvgDelta < 0.01 && !pktLossCongestion:
		st.curBitrate += cfg.AdaptiveIncrStep + st.curBitrate/30
		st.nextIncrTS = now + uint64(cfg.AdaptiveIncrIntervalMS)
	}

	st.curBitrate = balancer.Clamp(st.curBitrate, cfg.MinBitrate, cfg.MaxBitrate)

	return balancer.Output{
		NewBitrate: balancer.RoundDown100k(st.curBitrate),
		Throughput: st.throughput,
		RTT:        int64(roundedRTT),
		RTTThMin:   rttThMin,
		RTTThMax:   rttThMax,
		BS:         sample.BufferSize,
		BSTh1:      bsTh1,
		BSTh2:      bsTh2,
		BSTh3:      bsTh3,
	}
}
