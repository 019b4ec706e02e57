package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSetsGauges(t *testing.T) {
	e := NewExporter()
	e.Observe(4_500_000, 4_800_000, 35, 100, 12, "light")

	if got := testutil.ToFloat64(e.bitrate); got != 4_500_000 {
		t.Fatalf("bitrate gauge = %v, want 4500000", got)
	}
	if got := testutil.ToFloat64(e.rtt); got != 35 {
		t.Fatalf("rtt gauge = %v, want 35", got)
	}
}

func TestObserveDefaultsEmptyTierToNone(t *testing.T) {
	e := NewExporter()
	e.Observe(1, 1, 1, 1, 1, "")
	if got := testutil.ToFloat64(e.tierDecisions.WithLabelValues("none")); got != 1 {
		t.Fatalf("none tier counter = %v, want 1", got)
	}
}
