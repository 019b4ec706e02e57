// Package config holds the typed, reloadable configuration snapshot and
// its sectioned key/value file format. Serialized values are kilobits per
// second; runtime values (balancer.Config) are bits per second. This
// package is the single choke point for that translation.
package config

import (
	"fmt"

	"srtbalance/internal/balancer"
)

// Absolute corridor every min/max bitrate must stay within, in bits/s.
const (
	MinBitrateFloorBps = 300_000
	MaxBitrateCeilBps  = 30_000_000
)

// Default section values (§4.8).
const (
	DefaultMinBitrateKbps = 300
	DefaultMaxBitrateKbps = 6000
	DefaultBalancerName   = "adaptive"
	DefaultSRTLatencyMS   = 2000
	DefaultSRTPktSize     = 188 * 7
	DefaultSRTPktSizeSmall = 188 * 6

	DefaultAdaptiveIncrStepKbps     = 30
	DefaultAdaptiveDecrStepKbps     = 100
	DefaultAdaptiveIncrIntervalMS   = 500
	DefaultAdaptiveDecrIntervalMS   = 200
	DefaultAdaptiveLossThreshold    = 0.5

	DefaultAIMDIncrStepKbps     = 50
	DefaultAIMDDecrMult         = 0.75
	DefaultAIMDIncrIntervalMS   = 500
	DefaultAIMDDecrIntervalMS   = 200
)

// OverlayMode selects how the console overlay renders a tick.
type OverlayMode string

// Overlay modes.
const (
	OverlayLine  OverlayMode = "line"
	OverlayTable OverlayMode = "table"
)

// Observability holds the purely-ambient, non-algorithmic knobs added in
// SPEC_FULL.md's [observability] section: none of these fields are ever
// read by a balancer algorithm.
type Observability struct {
	PrometheusAddr   string
	OverlayMode      OverlayMode
	HDRLogIntervalMS int64
}

// Config is the immutable, reloadable configuration snapshot (§3).
type Config struct {
	MinBitrateKbps int64
	MaxBitrateKbps int64
	BalancerName   string

	SRTLatencyMS int64
	SRTPktSize   int64

	AdaptiveIncrStepKbps   int64
	AdaptiveDecrStepKbps   int64
	AdaptiveIncrIntervalMS int64
	AdaptiveDecrIntervalMS int64
	AdaptiveLossThreshold  float64 // accepted and reserved, per §4.8

	AIMDIncrStepKbps   int64
	AIMDDecrMult       float64
	AIMDIncrIntervalMS int64
	AIMDDecrIntervalMS int64

	Observability Observability
}

// Default returns the configuration defaults listed in §4.8.
func Default() Config {
	return Config{
		MinBitrateKbps: DefaultMinBitrateKbps,
		MaxBitrateKbps: DefaultMaxBitrateKbps,
		BalancerName:   DefaultBalancerName,

		SRTLatencyMS: DefaultSRTLatencyMS,
		SRTPktSize:   DefaultSRTPktSize,

		AdaptiveIncrStepKbps:   DefaultAdaptiveIncrStepKbps,
		AdaptiveDecrStepKbps:   DefaultAdaptiveDecrStepKbps,
		AdaptiveIncrIntervalMS: DefaultAdaptiveIncrIntervalMS,
		AdaptiveDecrIntervalMS: DefaultAdaptiveDecrIntervalMS,
		AdaptiveLossThreshold:  DefaultAdaptiveLossThreshold,

		AIMDIncrStepKbps:   DefaultAIMDIncrStepKbps,
		AIMDDecrMult:       DefaultAIMDDecrMult,
		AIMDIncrIntervalMS: DefaultAIMDIncrIntervalMS,
		AIMDDecrIntervalMS: DefaultAIMDDecrIntervalMS,

		Observability: Observability{OverlayMode: OverlayLine, HDRLogIntervalMS: 5000},
	}
}

// MinBitrateBps converts the serialized kbit/s minimum to bits/s.
func (c Config) MinBitrateBps() int64 { return c.MinBitrateKbps * 1000 }

// MaxBitrateBps converts the serialized kbit/s maximum to bits/s.
func (c Config) MaxBitrateBps() int64 { return c.MaxBitrateKbps * 1000 }

// Validate checks the invariants from §3: min <= max, both within the
// absolute corridor, latency in range, and a non-zero aimd decr_mult in
// (0,1). Packet size is not checked.
func (c Config) Validate() error {
	minBps, maxBps := c.MinBitrateBps(), c.MaxBitrateBps()
	if minBps > maxBps {
		return fmt.Errorf("config: min_bitrate (%d) > max_bitrate (%d)", minBps, maxBps)
	}
	if minBps < MinBitrateFloorBps || minBps > MaxBitrateCeilBps {
		return fmt.Errorf("config: min_bitrate %d out of corridor [%d, %d]", minBps, MinBitrateFloorBps, MaxBitrateCeilBps)
	}
	if maxBps < MinBitrateFloorBps || maxBps > MaxBitrateCeilBps {
		return fmt.Errorf("config: max_bitrate %d out of corridor [%d, %d]", maxBps, MinBitrateFloorBps, MaxBitrateCeilBps)
	}
	if c.SRTLatencyMS < 100 || c.SRTLatencyMS > 10_000 {
		return fmt.Errorf("config: srt_latency %dms out of range [100, 10000]", c.SRTLatencyMS)
	}
	if c.AIMDDecrMult != 0 && (c.AIMDDecrMult <= 0 || c.AIMDDecrMult >= 1) {
		return fmt.Errorf("config: aimd decr_mult %v not in (0,1)", c.AIMDDecrMult)
	}
	return nil
}

// WithBounds returns a copy of c with new bounds, expressed in bits/s and
// translated back to the kbit/s serialization unit. Used by a hot reload
// to build the snapshot handed to runner.UpdateBounds.
func (c Config) WithBounds(minBps, maxBps int64) Config {
	c.MinBitrateKbps = minBps / 1000
	c.MaxBitrateKbps = maxBps / 1000
	return c
}

// ToBalancerConfig builds the bits-per-second runtime view an
// balancer.Algorithm.Init consumes.
func (c Config) ToBalancerConfig() balancer.Config {
	return balancer.Config{
		MinBitrate: balancer.Bitrate(c.MinBitrateBps()),
		MaxBitrate: balancer.Bitrate(c.MaxBitrateBps()),

		SRTLatencyMS: c.SRTLatencyMS,
		SRTPktSize:   c.SRTPktSize,

		AdaptiveIncrStep:       balancer.Bitrate(c.AdaptiveIncrStepKbps * 1000),
		AdaptiveDecrStep:       balancer.Bitrate(c.AdaptiveDecrStepKbps * 1000),
		AdaptiveIncrIntervalMS: c.AdaptiveIncrIntervalMS,
		AdaptiveDecrIntervalMS: c.AdaptiveDecrIntervalMS,

		AIMDIncrStep:       balancer.Bitrate(c.AIMDIncrStepKbps * 1000),
		AIMDDecrMult:       c.AIMDDecrMult,
		AIMDIncrIntervalMS: c.AIMDIncrIntervalMS,
		AIMDDecrIntervalMS: c.AIMDDecrIntervalMS,
	}
}
