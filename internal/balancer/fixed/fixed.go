// Package fixed implements the passthrough balancer: it publishes the
// configured maximum bitrate, rounded, forever.
package fixed

import (
	"math"

	"srtbalance/internal/balancer"
)

// Name is the registry identifier for this algorithm.
const Name = "fixed"

// Fixed is the stateless algorithm descriptor.
type Fixed struct{}

// New returns the fixed algorithm descriptor.
func New() *Fixed {
	return &Fixed{}
}

// Name implements balancer.Algorithm.
func (Fixed) Name() string { return Name }

// Description implements balancer.Algorithm.
func (Fixed) Description() string {
	return "passthrough of the configured maximum bitrate, rounded down to 100 kbit/s"
}

type state struct {
	fixedBitrate balancer.Bitrate
}

// Init implements balancer.Algorithm.
func (Fixed) Init(cfg balancer.Config) (balancer.State, error) {
	if cfg.MinBitrate > cfg.MaxBitrate {
		return nil, balancer.ErrInitFailed
	}
	return &state{fixedBitrate: balancer.RoundDown100k(cfg.MaxBitrate)}, nil
}

// Cleanup implements balancer.Algorithm.
func (Fixed) Cleanup(balancer.State) {}

// Step implements balancer.Algorithm. See SPEC_FULL.md §4.6.
func (Fixed) Step(s balancer.State, sample balancer.Sample) balancer.Output {
	st := s.(*state)
	return balancer.Output{
		NewBitrate: st.fixedBitrate,
		Throughput: float64(st.fixedBitrate),
		RTT:        int64(math.Round(sample.RTTMs)),
		BS:         sample.BufferSize,
	}
}
