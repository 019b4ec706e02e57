// Package runner owns the bound algorithm handle and its opaque state for
// one session, and mediates hot-reload of the bitrate bounds.
package runner

import (
	"errors"
	"fmt"

	"srtbalance/internal/balancer"
	"srtbalance/internal/balancer/registry"
)

// ErrUnknownAlgorithm is returned by New when an explicit algorithm
// override names an algorithm the registry doesn't know.
var ErrUnknownAlgorithm = errors.New("runner: unknown algorithm")

// Runner mediates access to exactly one algorithm's state for the life of
// a session. Its own state is mutated only on the control-loop thread; it
// performs no locking because there are no concurrent callers by
// construction (SPEC_FULL.md §5).
type Runner struct {
	reg  *registry.Registry
	algo balancer.Algorithm
	cfg  balancer.Config
	st   balancer.State
}

// New resolves the algorithm to run (override, else cfg.BalancerName via
// the reg lookup, else the registry default) and calls the algorithm's Init
// with cfg.
//
// algoOverride, when non-empty, must name a known algorithm or New returns
// ErrUnknownAlgorithm. An unknown cfg-selected name with no override falls
// back to the registry default rather than failing.
func New(reg *registry.Registry, cfg balancer.Config, balancerName, algoOverride string) (*Runner, error) {
	var algo balancer.Algorithm
	switch {
	case algoOverride != "":
		a, ok := reg.Lookup(algoOverride)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algoOverride)
		}
		algo = a
	default:
		if a, ok := reg.Lookup(balancerName); ok {
			algo = a
		} else {
			algo = reg.Default()
		}
	}

	r := &Runner{reg: reg, algo: algo, cfg: cfg}
	st, err := algo.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("runner: init %s: %w", algo.Name(), err)
	}
	r.st = st
	return r, nil
}

// Step forwards sample to the bound algorithm.
func (r *Runner) Step(sample balancer.Sample) balancer.Output {
	return r.algo.Step(r.st, sample)
}

// UpdateBounds replaces the min/max bounds in the runner's config snapshot
// and reinitializes the bound algorithm's state. This is the only place
// bounds may change, and it intentionally resets algorithm state: a hot
// reload starts the decision logic fresh against the new corridor.
func (r *Runner) UpdateBounds(minBps, maxBps balancer.Bitrate) error {
	r.algo.Cleanup(r.st)
	r.cfg.MinBitrate = minBps
	r.cfg.MaxBitrate = maxBps
	st, err := r.algo.Init(r.cfg)
	if err != nil {
		return fmt.Errorf("runner: reinit %s after bounds update: %w", r.algo.Name(), err)
	}
	r.st = st
	return nil
}

// Name returns the bound algorithm's name, or "none" if the runner has no
// algorithm bound (the zero Runner).
func (r *Runner) Name() string {
	if r == nil || r.algo == nil {
		return "none"
	}
	return r.algo.Name()
}

// Close releases the bound algorithm's state. It is safe to call more than
// once.
func (r *Runner) Close() {
	if r.algo == nil {
		return
	}
	r.algo.Cleanup(r.st)
	r.st = nil
}
