// Package balancer defines the lifecycle contract shared by every bitrate
// balancing algorithm (adaptive, aimd, fixed): a name, an init that builds
// opaque per-session state from a runtime config, a pure step that turns
// one telemetry sample into a decision, and a cleanup that releases state.
//
// A balancer never performs I/O and never fails in Step; the only failure
// point in the contract is Init.
package balancer

import "errors"

// ErrInitFailed is returned by Init when an algorithm cannot build its
// per-session state from the given Config (e.g. it rejects the bounds).
var ErrInitFailed = errors.New("balancer: init failed")

// Config is the runtime, bits-per-second view of configuration an
// algorithm's Init receives. The translation from the kilobits-per-second
// serialized config to this struct happens once, in internal/config.
type Config struct {
	MinBitrate Bitrate // bits/s
	MaxBitrate Bitrate // bits/s

	SRTLatencyMS int64 // configured transport latency, ms
	SRTPktSize   int64 // transport payload size, bytes

	// Adaptive tuning. Zero means "use the algorithm's own default".
	AdaptiveIncrStep      Bitrate // bits/step
	AdaptiveDecrStep      Bitrate // bits/step
	AdaptiveIncrIntervalMS int64
	AdaptiveDecrIntervalMS int64

	// AIMD tuning. Zero means "use the algorithm's own default".
	AIMDIncrStep       Bitrate // bits/step
	AIMDDecrMult       float64 // (0,1)
	AIMDIncrIntervalMS int64
	AIMDDecrIntervalMS int64
}

// Bitrate is a signed bits-per-second quantity. It is always carried at
// 64-bit width so that intermediate arithmetic (increments, multiplicative
// decreases) cannot overflow at the 30 Mbit/s scale the corridor allows.
type Bitrate int64

// RoundDown100k rounds b down to the nearest 100 kbit/s multiple. Publishing
// is the only place rounding happens; algorithm state always carries the
// unrounded value so repeated small increments accumulate correctly.
func RoundDown100k(b Bitrate) Bitrate {
	const step = Bitrate(100_000)
	m := b % step
	if m < 0 {
		m += step
	}
	return b - m
}

// Clamp restricts b to [min, max].
func Clamp(b, min, max Bitrate) Bitrate {
	if b < min {
		return min
	}
	if b > max {
		return max
	}
	return b
}

// Sample is one telemetry observation, one per control-loop tick.
type Sample struct {
	TimestampMS uint64 // monotonic ms

	RTTMs        float64 // round-trip time, ms
	BufferSize   int64   // outstanding unacknowledged packets, >= 0
	SendRateMbps float64

	PktLossTotal    int64 // cumulative, non-decreasing across a session
	PktRetransTotal int64 // cumulative, non-decreasing across a session
}

// Output is everything a Step produces: the decision plus the
// observability fields a caller can surface on an overlay.
type Output struct {
	NewBitrate Bitrate // bits/s, rounded down to a 100 kbit/s multiple
	Throughput float64 // bits/s

	RTT       int64 // ms, rounded
	RTTThMin  float64
	RTTThMax  float64

	BS    int64 // buffer size, echoed from the sample
	BSTh1 float64
	BSTh2 float64
	BSTh3 float64
}

// State is algorithm-owned, opaque to everything outside the algorithm
// that created it. The runner only ever hands it back to that algorithm.
type State any

// Algorithm is the pluggable balancer contract: name/description plus the
// init/step/cleanup lifecycle.
type Algorithm interface {
	// Name returns the algorithm's registry identifier (e.g. "adaptive").
	Name() string
	// Description returns a short human-readable summary.
	Description() string
	// Init builds fresh per-session state from cfg, or returns
	// ErrInitFailed (wrapped) if cfg cannot be honored.
	Init(cfg Config) (State, error)
	// Step is pure with respect to external side effects: given the
	// current state and one sample, it returns a decision. It must never
	// fail and must never block.
	Step(state State, sample Sample) Output
	// Cleanup releases state. It must be idempotent against nil.
	Cleanup(state State)
}
