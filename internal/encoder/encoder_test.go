package encoder

import (
	"testing"

	"go.uber.org/zap/zaptest/observer"

	"go.uber.org/zap"
)

func TestLoggingSkipsUnchangedBitrate(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	e := NewLogging(logger, UnitBitsPerSecond)
	e.SetBitrate(5_000_000)
	e.SetBitrate(5_000_000)
	e.SetBitrate(4_500_000)

	if got := logs.Len(); got != 2 {
		t.Fatalf("logged %d bitrate changes, want 2", got)
	}
}

func TestNoOpDiscardsCalls(t *testing.T) {
	var n NoOp
	n.SetBitrate(1_000_000) // must not panic
}
