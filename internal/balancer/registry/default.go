package registry

import (
	"srtbalance/internal/balancer/adaptive"
	"srtbalance/internal/balancer/aimd"
	"srtbalance/internal/balancer/fixed"
)

// NewDefault returns a Registry pre-populated with the three built-in
// algorithms, adaptive first so it is the default selection.
func NewDefault() *Registry {
	r := New()
	r.Register(adaptive.New())
	r.Register(aimd.New())
	r.Register(fixed.New())
	return r
}
