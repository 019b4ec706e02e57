package overlay

import (
	"bytes"
	"strings"
	"testing"

	"srtbalance/internal/balancer"
)

func TestLineUpdateWritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLine(&buf)
	l.Update(balancer.Output{NewBitrate: 4_500_000, RTT: 40, RTTThMax: 100})

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", out)
	}
	if !strings.Contains(out, "kbit/s") {
		t.Fatalf("expected a kbit/s unit in output, got %q", out)
	}
}

func TestTableHistoryIsBounded(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, 3)
	for i := int64(1); i <= 5; i++ {
		tbl.Update(balancer.Output{NewBitrate: balancer.Bitrate(i * 100_000)})
	}
	hist := tbl.History()
	if len(hist) != 3 {
		t.Fatalf("History() length = %d, want 3", len(hist))
	}
	if hist[len(hist)-1] != 500_000 {
		t.Fatalf("last history entry = %d, want 500000", hist[len(hist)-1])
	}
}

func TestTrendNoopsBelowTwoSamples(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, 10)
	tbl.Trend([]int64{1})
	if buf.Len() != 0 {
		t.Fatalf("expected no output for a single-sample trend, got %q", buf.String())
	}
}

func TestNoOpUpdateDoesNothing(t *testing.T) {
	var n NoOp
	n.Update(balancer.Output{}) // must not panic
}
