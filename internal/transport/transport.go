// Package transport defines the contracts the control loop requires of a
// reliable UDP-based transport session (SRT): establishing a session,
// sending a packet, and pulling current telemetry and outstanding-buffer
// size. Concrete adapters live in subpackages (see quicsrt).
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory classifies a connect-time failure (§6).
type ErrorCategory int

// Connect-time error categories.
const (
	ErrOther ErrorCategory = iota
	ErrTimeout
	ErrStreamIDConflict
	ErrStreamIDForbidden
	ErrAddressResolution
	ErrSocketCreate
	ErrOptionSet
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrTimeout:
		return "Timeout"
	case ErrStreamIDConflict:
		return "StreamIdConflict"
	case ErrStreamIDForbidden:
		return "StreamIdForbidden"
	case ErrAddressResolution:
		return "AddressResolution"
	case ErrSocketCreate:
		return "SocketCreate"
	case ErrOptionSet:
		return "OptionSet"
	default:
		return "Other"
	}
}

// ConnectError wraps a categorized connect-time failure.
type ConnectError struct {
	Category ErrorCategory
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("transport: connect failed (%s): %v", e.Category, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ErrSendFailed marks a mid-session send failure, which is fatal to the
// owning loop (§7).
var ErrSendFailed = errors.New("transport: send failed")

// Stats is the telemetry a session reports each tick (§6).
type Stats struct {
	RTTMs           float64
	SendRateMbps    float64
	PktLossTotal    int64
	PktRetransTotal int64
	AckCount        int64
}

// Session is a connected transport handle.
type Session interface {
	// Send writes bytes to the session, returning the number written or
	// ErrSendFailed wrapped with more context.
	Send(ctx context.Context, data []byte) (int, error)
	// Stats returns the session's current cumulative telemetry.
	Stats(ctx context.Context) (Stats, error)
	// BufferSize returns the count of outstanding unacknowledged packets.
	BufferSize(ctx context.Context) (int64, error)
	// Close releases the session's resources. Idempotent.
	Close() error
}

// Dialer establishes transport sessions. streamID may be empty.
type Dialer interface {
	Connect(ctx context.Context, host string, port int, streamID string, latencyMS int64, pktSize int64) (Session, error)
}
