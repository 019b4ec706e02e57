// Package quicsrt backs the transport.Dialer/Session contract with a real
// reliable, congestion-aware UDP session from github.com/quic-go/quic-go.
//
// SRT's own Go binding is not present in the retrieved corpus (see
// DESIGN.md); quic-go gives the same shape of session — reliable delivery
// over UDP with connection-level RTT and loss accounting — so it stands in
// as the concrete transport for this adapter rather than leaving the
// balancer's transport contract unimplemented.
package quicsrt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	quic "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"srtbalance/internal/transport"
)

// Dialer implements transport.Dialer over quic-go.
type Dialer struct {
	logger *zap.Logger
}

// NewDialer returns a quic-go-backed Dialer.
func NewDialer(logger *zap.Logger) *Dialer {
	return &Dialer{logger: logger}
}

// Connect implements transport.Dialer.
func (d *Dialer) Connect(ctx context.Context, host string, port int, streamID string, latencyMS int64, pktSize int64) (transport.Session, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	qcfg := &quic.Config{
		MaxIdleTimeout:  time.Duration(latencyMS*3) * time.Millisecond,
		KeepAlivePeriod: time.Duration(latencyMS) * time.Millisecond,
	}
	tlsConf := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"srt-balance"},
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, qcfg)
	if err != nil {
		return nil, categorize(err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream open failed")
		return nil, &transport.ConnectError{Category: transport.ErrOther, Err: err}
	}

	d.logger.Info("transport session established",
		zap.String("addr", addr),
		zap.String("stream_id", streamID),
		zap.Int64("latency_ms", latencyMS))

	return &session{
		logger:  d.logger,
		conn:    conn,
		stream:  stream,
		pktSize: pktSize,
		start:   time.Now(),
	}, nil
}

func categorize(err error) error {
	switch {
	case err == context.DeadlineExceeded:
		return &transport.ConnectError{Category: transport.ErrTimeout, Err: err}
	default:
		var netErr interface{ Timeout() bool }
		if ok := asTimeout(err, &netErr); ok && netErr.Timeout() {
			return &transport.ConnectError{Category: transport.ErrTimeout, Err: err}
		}
		return &transport.ConnectError{Category: transport.ErrOther, Err: err}
	}
}

func asTimeout(err error, target *interface{ Timeout() bool }) bool {
	if t, ok := err.(interface{ Timeout() bool }); ok {
		*target = t
		return true
	}
	return false
}

// session implements transport.Session over one quic-go connection and a
// single bulk stream used to carry the live-video payload.
type session struct {
	logger *zap.Logger
	conn   *quic.Conn
	stream *quic.Stream

	pktSize int64
	start   time.Time

	sentBytes atomic.Int64
	// ackedBytes counts successful Write calls, not acked bytes: quic-go's
	// public Stream API has no ack callback, so a completed write (the
	// stream accepted the data into its send buffer) is the closest
	// available ack-eliciting-activity signal for the loop's timeout check.
	ackedBytes atomic.Int64

	mu       sync.Mutex
	inFlight int64
	rttMs    float64
}

// Send implements transport.Session. The write-call latency is used as an
// RTT proxy: quic-go does not expose its internal smoothed-RTT estimate
// through the public Conn API, and the balancer only needs a reasonably
// fresh number, not the congestion controller's own estimate.
func (s *session) Send(ctx context.Context, data []byte) (int, error) {
	started := time.Now()
	n, err := s.stream.Write(data)
	if err != nil {
		return n, fmt.Errorf("%w: %v", transport.ErrSendFailed, err)
	}
	elapsedMs := float64(time.Since(started)) / float64(time.Millisecond)

	s.sentBytes.Add(int64(n))
	s.ackedBytes.Add(1)
	s.mu.Lock()
	s.inFlight += int64(n) / max64(s.pktSize, 1)
	s.rttMs = 0.9*s.rttMs + 0.1*elapsedMs
	s.mu.Unlock()

	return n, nil
}

// Stats implements transport.Session.
func (s *session) Stats(ctx context.Context) (transport.Stats, error) {
	elapsed := time.Since(s.start).Seconds()
	var mbps float64
	if elapsed > 0 {
		mbps = float64(s.sentBytes.Load()) * 8 / elapsed / 1e6
	}
	s.mu.Lock()
	rtt := s.rttMs
	s.mu.Unlock()
	return transport.Stats{
		RTTMs:        rtt,
		SendRateMbps: mbps,
		// quic-go does not expose a raw SRT-style retransmit counter;
		// loss/PTO accounting stays internal to its congestion controller.
		PktLossTotal:    0,
		PktRetransTotal: 0,
		AckCount:        s.ackedBytes.Load(),
	}, nil
}

// BufferSize implements transport.Session. It returns the number of
// packets (bytes / pktSize) accepted by all Send calls so far; quic-go's
// stream API gives no per-write acknowledgement, so the count is never
// decreased.
func (s *session) BufferSize(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight, nil
}

// Close implements transport.Session.
func (s *session) Close() error {
	if s.stream != nil {
		_ = s.stream.Close()
	}
	return s.conn.CloseWithError(0, "session closed")
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
