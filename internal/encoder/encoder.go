// Package encoder defines the contract the control loop uses to push a new
// target bitrate into the video encoder, concealing whether the
// underlying element expects bits/s or kbit/s behind the adapter.
package encoder

import "go.uber.org/zap"

// Adapter applies a new bitrate to the encoder. SetBitrate may be silently
// ignored if no dynamic-control element exists.
type Adapter interface {
	SetBitrate(bps int64)
}

// unit is the encoder property's native unit, detected once at binding
// time and concealed from the rest of the system.
type unit int

// Supported encoder property units.
const (
	UnitBitsPerSecond unit = iota
	UnitKilobitsPerSecond
)

// Logging is a concrete Adapter that logs every bitrate change instead of
// driving a real capture pipeline's encoder element — a stand-in for the
// GStreamer-style property binding this repository's core does not own
// (§1 Non-goals: media encoding).
type Logging struct {
	logger *zap.Logger
	unit   unit
	last   int64
}

// NewLogging returns a Logging encoder adapter using the given property
// unit.
func NewLogging(logger *zap.Logger, u unit) *Logging {
	return &Logging{logger: logger, unit: u, last: -1}
}

// SetBitrate implements Adapter.
func (l *Logging) SetBitrate(bps int64) {
	if bps == l.last {
		return
	}
	l.last = bps
	v := bps
	if l.unit == UnitKilobitsPerSecond {
		v = bps / 1000
	}
	l.logger.Info("encoder bitrate changed",
		zap.Int64("bps", bps),
		zap.Int64("property_value", v),
		zap.String("unit", unitName(l.unit)))
}

func unitName(u unit) string {
	if u == UnitKilobitsPerSecond {
		return "kbit/s"
	}
	return "bit/s"
}

// NoOp is an Adapter for sessions with no dynamic-control element at all.
type NoOp struct{}

// SetBitrate implements Adapter; it silently discards every call.
func (NoOp) SetBitrate(int64) {}
